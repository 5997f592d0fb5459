package remote

import (
	"github.com/dmitrijs2005/vaxsync/internal/client/models"
	pb "github.com/dmitrijs2005/vaxsync/internal/proto"
)

func recordFromWire(r pb.Record) models.Record {
	return models.Record{Key: r.Key, Version: r.Version, UpdatedAt: r.UpdatedAt.UTC(), Fields: r.Fields}
}

func recordsFromWire(rs []pb.Record) []models.Record {
	out := make([]models.Record, 0, len(rs))
	for _, r := range rs {
		out = append(out, recordFromWire(r))
	}
	return out
}

func messageToWire(m models.MessagePayload) pb.Message {
	return pb.Message{ConversationID: m.ConversationID, GuardianID: m.GuardianID, Body: m.Body, ComposedAt: m.ComposedAt}
}

func editToWire(e models.ProfileEdit) pb.ProfileEdit {
	return pb.ProfileEdit{Collection: string(e.Collection), EntityID: e.EntityID, Changes: e.Changes}
}

func deliveryFromWire(d pb.Delivery) models.DeliveryResult {
	return models.DeliveryResult{MessageID: d.MessageID, ServerID: d.ServerID, DeliveredAt: d.DeliveredAt, Duplicate: d.Duplicate}
}
