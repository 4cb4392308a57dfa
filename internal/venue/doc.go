// Package venue implements the Venue Catalog: the static set of exchanges the
// feed knows how to reach, with their streaming and REST endpoints and the
// handshake deadline for each.
package venue
