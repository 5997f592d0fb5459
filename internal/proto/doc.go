// Package proto describes the Records gRPC service shared by the client and
// the reference server.
//
// Every RPC exchanges google.protobuf.Struct messages. The Go types in
// wire.go define the JSON shape carried inside those structs; Encode and
// Decode convert between the two. The service description is written by
// hand, so there is no generated code to keep in sync.
package proto
