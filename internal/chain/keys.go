package chain

import "strconv"

// Discriminator is the first byte of an instruction's data. Valid is false
// when the instruction carried no data at all; that is a distinct key part,
// not byte zero.
type Discriminator struct {
	Value byte
	Valid bool
}

func NewDiscriminator(b byte) Discriminator {
	return Discriminator{Value: b, Valid: true}
}

func (d Discriminator) String() string {
	if !d.Valid {
		return "none"
	}
	return strconv.Itoa(int(d.Value))
}

// InstructionKey identifies a distinct instruction kind for discovery
// accounting: the program that executed plus the leading data byte.
// Payloads that differ only beyond the first byte collapse to one key.
// The struct is comparable and safe to use as a map key.
type InstructionKey struct {
	ProgramID     string
	Discriminator Discriminator
}

// String renders the persisted form "<program>#<byte>" or "<program>#none".
func (k InstructionKey) String() string {
	return k.ProgramID + "#" + k.Discriminator.String()
}
