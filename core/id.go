package core

import (
	"github.com/oklog/ulid/v2"

	"pkt.systems/cellpad/schema"
)

func newCellID() schema.CellID {
	return schema.CellID(ulid.Make().String())
}
