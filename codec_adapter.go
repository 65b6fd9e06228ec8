package http2

import "github.com/dgrr/http2/h2core"

// hpackCodec adapts *HPack to h2core.HeaderCodec, keeping h2core free of
// any dependency on the concrete HPACK implementation.
type hpackCodec struct {
	hp *HPack
}

func (c hpackCodec) Decode(block []byte) ([]h2core.HeaderField, error) {
	if _, err := c.hp.Read(block); err != nil {
		c.hp.releaseFields()
		return nil, err
	}

	fields := make([]h2core.HeaderField, len(c.hp.fields))
	for i, f := range c.hp.fields {
		fields[i] = h2core.HeaderField{Name: f.Key(), Value: f.Value()}
	}
	c.hp.releaseFields()

	return fields, nil
}

func (c hpackCodec) Encode(dst []byte, fields []h2core.HeaderField) []byte {
	for _, f := range fields {
		c.hp.Add(f.Name, f.Value)
	}
	out, _ := c.hp.Write(dst)
	return out
}
