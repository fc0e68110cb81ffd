package codec

import (
	"log"

	"github.com/Allen1211/msgp/msgp"
)

type MsgpCodec struct {
}

func (c *MsgpCodec) Decode(data []byte, i interface{}) error {
	d, ok := i.(msgp.Unmarshaler)
	if !ok {
		log.Panicf("%v is not unmarshalable", i)
	}
	_, err := d.UnmarshalMsg(data)
	return err
}

func (c *MsgpCodec) Encode(i interface{}) ([]byte, error) {
	e, ok := i.(msgp.Marshaler)
	if !ok {
		log.Panicf("%v is not marshalable", i)
	}
	return e.MarshalMsg(nil)
}
