package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/dmitrijs2005/vaxsync/internal/client/models"
	"github.com/dmitrijs2005/vaxsync/internal/client/services"
)

// getSimpleText and getMultiline are indirections used to facilitate testing.
var (
	getSimpleText = GetSimpleText
	getMultiline  = GetMultiline
	getFields     = GetFields
)

var (
	guardianProfileFields = []string{"firstName", "lastName", "phone", "email", "address", "relationship"}
	patientDetailFields   = []string{"firstName", "lastName", "sex", "dateOfBirth", "barangay"}
)

// SignIn remembers a guardian id locally and, when online, pulls its records.
func (a *App) SignIn(ctx context.Context) error {
	id, err := getSimpleText(a.reader, "Enter guardian id", a.out)
	if err != nil {
		return err
	}
	if err := a.session.SignIn(ctx, id); err != nil {
		return err
	}
	a.guardianID = id
	fmt.Fprintf(a.out, "Signed in as %s\n", id)

	if a.online.Load() {
		return a.Refresh(ctx)
	}
	fmt.Fprintln(a.out, "Offline: showing cached records until the connection is back")
	return nil
}

func (a *App) Refresh(ctx context.Context) error {
	if err := a.records.Refresh(ctx, a.guardianID); err != nil {
		return fmt.Errorf("refresh failed, cached records are unchanged: %w", err)
	}
	fmt.Fprintln(a.out, "Records refreshed")
	return nil
}

func (a *App) Profile(ctx context.Context) error {
	g, err := a.records.Guardian(ctx, a.guardianID)
	if err != nil {
		return cachedErr(err)
	}

	p := g.Profile
	fmt.Fprintf(a.out, "%s %s (%s)\n", p.FirstName, p.LastName, g.ID)
	fmt.Fprintf(a.out, "  phone:        %s\n", p.Phone)
	fmt.Fprintf(a.out, "  email:        %s\n", p.Email)
	fmt.Fprintf(a.out, "  address:      %s\n", p.Address)
	fmt.Fprintf(a.out, "  relationship: %s\n", p.Relationship)

	unread := 0
	for _, n := range g.Notifications {
		if !n.Read {
			unread++
		}
	}
	fmt.Fprintf(a.out, "  notifications: %d (%d unread)\n", len(g.Notifications), unread)
	return nil
}

func (a *App) Patients(ctx context.Context) error {
	patients, err := a.records.PatientsByGuardian(ctx, a.guardianID)
	if err != nil {
		return err
	}
	if len(patients) == 0 {
		fmt.Fprintln(a.out, "No patients cached")
		return nil
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tBORN\tNEXT DOSE")
	for _, p := range patients {
		fmt.Fprintf(tw, "%s\t%s %s\t%s\t%s\n", p.ID, p.Details.FirstName, p.Details.LastName, p.Details.DateOfBirth, nextDose(p))
	}
	return tw.Flush()
}

func (a *App) Patient(ctx context.Context, id string) error {
	p, err := a.records.Patient(ctx, id)
	if err != nil {
		return cachedErr(err)
	}

	d := p.Details
	fmt.Fprintf(a.out, "%s %s (%s), %s, born %s\n", d.FirstName, d.LastName, p.ID, d.Sex, d.DateOfBirth)
	fmt.Fprintf(a.out, "  weight %.1f kg, height %.1f cm\n", p.Vitals.WeightKg, p.Vitals.HeightCm)

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  VACCINE\tDOSE\tDATE\tSTATUS")
	for _, im := range p.Immunizations {
		fmt.Fprintf(tw, "  %s\t%d\t%s\tgiven\n", im.VaccineCode, im.DoseNumber, im.AdministeredAt.Format("2006-01-02"))
	}
	for _, s := range p.Schedules {
		fmt.Fprintf(tw, "  %s\t%d\t%s\t%s\n", s.VaccineCode, s.DoseNumber, s.DueDate, s.Status)
	}
	return tw.Flush()
}

func (a *App) FAQs(ctx context.Context) error {
	faqs, err := a.records.FAQs(ctx)
	if err != nil {
		return err
	}
	if len(faqs) == 0 {
		fmt.Fprintln(a.out, "No FAQs cached")
		return nil
	}
	for _, f := range faqs {
		fmt.Fprintf(a.out, "Q: %s\nA: %s\n\n", f.Question, f.Answer)
	}
	return nil
}

// Send queues a message in the guardian's conversation. When the guardian
// has several conversations the user picks one.
func (a *App) Send(ctx context.Context) error {
	conversation := ""
	if g, err := a.records.Guardian(ctx, a.guardianID); err == nil && len(g.Conversations) == 1 {
		conversation = g.Conversations[0]
	}
	if conversation == "" {
		c, err := getSimpleText(a.reader, "Conversation id", a.out)
		if err != nil {
			return err
		}
		conversation = c
	}

	body, err := getMultiline(a.reader, "Message", a.out)
	if err != nil {
		return err
	}

	id, err := a.outbox.SendMessage(ctx, conversation, a.guardianID, body)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Queued message %s\n", id)
	return nil
}

func (a *App) EditProfile(ctx context.Context) error {
	var current any = models.GuardianProfile{}
	if g, err := a.records.Guardian(ctx, a.guardianID); err == nil {
		current = g.Profile
	}
	return a.editNested(ctx, models.CollectionGuardians, a.guardianID, "profile", current, guardianProfileFields)
}

func (a *App) EditPatient(ctx context.Context, id string) error {
	p, err := a.records.Patient(ctx, id)
	if err != nil {
		return cachedErr(err)
	}
	return a.editNested(ctx, models.CollectionPatients, id, "details", p.Details, patientDetailFields)
}

// editNested reads name=value lines, overlays them on current and queues the
// result as a replacement of the top-level field.
func (a *App) editNested(ctx context.Context, c models.Collection, id, field string, current any, allowed []string) error {
	input, err := getFields(a.reader, "Fields to change: "+strings.Join(allowed, ", "), a.out)
	if err != nil {
		return err
	}
	if len(input) == 0 {
		fmt.Fprintln(a.out, "Nothing to change")
		return nil
	}

	value, err := toMap(current)
	if err != nil {
		return err
	}
	for name, v := range input {
		if !slices.Contains(allowed, name) {
			return fmt.Errorf("field %q cannot be edited", name)
		}
		value[name] = v
	}

	qid, err := a.outbox.EditProfile(ctx, c, id, map[string]any{field: value})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Queued edit %s\n", qid)
	return nil
}

func (a *App) Outbox(ctx context.Context) error {
	for _, p := range models.Partitions {
		counts, err := a.outbox.Counts(ctx, p)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "%s: %d pending, %d sending, %d failed, %d dead\n", p,
			counts[models.StatusPending], counts[models.StatusSending],
			counts[models.StatusFailed], counts[models.StatusDeadLetter])

		items, err := a.outbox.List(ctx, p, models.StatusFailed, models.StatusDeadLetter)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			continue
		}
		tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "  ID\tSTATUS\tATTEMPTS\tERROR")
		for _, it := range items {
			fmt.Fprintf(tw, "  %s\t%s\t%d\t%s\n", it.ID, it.Status, it.AttemptCount, it.LastError)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) Retry(ctx context.Context, partition, id string) error {
	p, err := parsePartition(partition)
	if err != nil {
		return err
	}
	if err := a.outbox.Retry(ctx, p, id); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Item %s will be retried\n", id)
	return nil
}

func (a *App) Discard(ctx context.Context, partition, id string) error {
	p, err := parsePartition(partition)
	if err != nil {
		return err
	}
	if err := a.outbox.Discard(ctx, p, id); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Item %s discarded\n", id)
	return nil
}

// Sync flushes both queues now, whatever the monitor last reported.
func (a *App) Sync(ctx context.Context) error {
	before := a.flusher.Stats()
	if err := a.flusher.FlushAll(ctx); err != nil {
		return err
	}
	after := a.flusher.Stats()
	fmt.Fprintf(a.out, "Delivered %d, retrying %d, dead-lettered %d\n",
		after.Delivered-before.Delivered, after.Retried-before.Retried, after.DeadLettered-before.DeadLettered)
	return nil
}

// Logout wipes cached records. Queued writes stay and are sent later.
func (a *App) Logout(ctx context.Context) error {
	if err := a.session.Logout(ctx); err != nil {
		return err
	}
	a.guardianID = ""
	fmt.Fprintln(a.out, "Signed out")
	return nil
}

func cachedErr(err error) error {
	if errors.Is(err, services.ErrNotCached) {
		return fmt.Errorf("%w; run refresh while online", err)
	}
	return err
}

func parsePartition(s string) (models.Partition, error) {
	p := models.Partition(s)
	if !p.Valid() {
		return "", fmt.Errorf("unknown queue %q, expected messages or profile_edits", s)
	}
	return p, nil
}

func nextDose(p models.Patient) string {
	var due []models.DoseSchedule
	for _, s := range p.Schedules {
		if s.Status != "given" && s.Status != "done" {
			due = append(due, s)
		}
	}
	if len(due) == 0 {
		return "-"
	}
	sort.Slice(due, func(i, j int) bool { return due[i].DueDate < due[j].DueDate })
	return fmt.Sprintf("%s #%d on %s", due[0].VaccineCode, due[0].DoseNumber, due[0].DueDate)
}

func toMap(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	m := map[string]any{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}
