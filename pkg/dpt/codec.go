package dpt

// Payloads of six bits or fewer travel inside the APCI octet ("small
// payload"); wider payloads follow it as big-endian octets.

// EncodedSize returns the number of payload octets for a width.
func EncodedSize(width int) int {
	if width <= 6 {
		return 1
	}
	return (width + 7) / 8
}

// Encode converts a value to its on-bus payload at the declared width.
// Negative values are written in two's complement.
func (d *DPT) Encode(v int64) []byte {
	return EncodeWidth(v, d.DeclaredWidth())
}

// Decode converts an on-bus payload to a value at the declared width.
// An empty payload decodes to an absent value.
func (d *DPT) Decode(payload []byte) Value {
	return DecodeWidth(payload, d.DeclaredWidth())
}

// EncodeWidth encodes v into EncodedSize(width) octets.
func EncodeWidth(v int64, width int) []byte {
	if width <= 6 {
		return []byte{byte(v) & byte(1<<width-1)}
	}
	n := EncodedSize(width)
	out := make([]byte, n)
	u := uint64(v)
	for i := n - 1; i >= 0; i-- {
		out[i] = byte(u)
		u >>= 8
	}
	return out
}

// DecodeWidth decodes a payload of the given width, sign-extending every
// width above one bit. Surplus leading octets are ignored.
func DecodeWidth(payload []byte, width int) Value {
	if len(payload) == 0 {
		return Absent()
	}
	if width <= 6 {
		raw := int64(payload[len(payload)-1] & byte(1<<width-1))
		return Some(signExtend(raw, width))
	}
	n := EncodedSize(width)
	if len(payload) > n {
		payload = payload[len(payload)-n:]
	}
	var u uint64
	for _, b := range payload {
		u = u<<8 | uint64(b)
	}
	bits := len(payload) * 8
	if bits > width {
		bits = width
	}
	return Some(signExtend(int64(u), bits))
}

func signExtend(raw int64, width int) int64 {
	if width <= 1 || width >= 64 {
		return raw
	}
	shift := 64 - width
	return raw << shift >> shift
}
