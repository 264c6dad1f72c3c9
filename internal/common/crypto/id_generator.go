package crypto

import "github.com/google/uuid"

type IDGenerator interface {
	NewID() (string, error)
}

// UUIDGenerator issues version 7 UUIDs, which sort by creation time and
// keep primary key inserts local in the btree.
type UUIDGenerator struct{}

func NewUUIDGenerator() *UUIDGenerator {
	return &UUIDGenerator{}
}

func (g *UUIDGenerator) NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
