// Package services is the UI-facing facade of the client. Reads come from the
// Local Store only; writes go through the Mutation Queue and are applied
// locally right away so they are visible while offline.
package services
