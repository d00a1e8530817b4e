package checklist

import (
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// identifies this client to the server, in the handshake and in request headers.
// ulid bytes in uuid text form, so ids from one client sort by create time
type Id [16]byte

func NewId() Id {
	return Id(ulid.Make())
}

func (self Id) String() string {
	return uuid.UUID(self).String()
}
