package dmr

// EmbeddedData carries Link Control fragments across the B-E voice bursts
// of a superframe. The full LC plus a checksum is split into 4 fragments of
// 3 bytes; each fragment rides the 7-byte sync region of one burst together
// with an EMB descriptor (color code, LCSS) and its explicit fragment index.
//
// Fragment layout within the masked 13-19 region:
//
//	byte 0: color code (low nibble, outer nibble masked off)
//	byte 1: EMB - color code high nibble, LCSS in bits 2-1
//	bytes 2-4: LC fragment
//	byte 5: fragment index
//	byte 6: low checksum bits (outer nibble masked off)
type EmbeddedData struct {
	lc        [9]byte
	checksum  byte
	colorCode byte

	// receive side reassembly
	seen  [4]bool
	frags [4][3]byte
	valid bool
}

// EmbeddedFragments is the number of bursts the LC is spread across
const EmbeddedFragments = 4

// NewEmbeddedData creates an embedded signalling state machine
func NewEmbeddedData(colorCode byte) *EmbeddedData {
	return &EmbeddedData{colorCode: colorCode & 0x0F}
}

// lcChecksum is a 5-bit sum over the full LC, matching the embedded
// signalling checksum width
func lcChecksum(lc []byte) byte {
	var sum int
	for _, b := range lc {
		sum += int(b)
	}
	return byte(sum % 31)
}

// SetLC loads a full LC for outbound fragmenting and resets receive state
func (e *EmbeddedData) SetLC(lc []byte) {
	copy(e.lc[:], lc)
	e.checksum = lcChecksum(e.lc[:])
	e.Reset()
}

// Reset clears receive-side reassembly state
func (e *EmbeddedData) Reset() {
	e.seen = [4]bool{}
	e.frags = [4][3]byte{}
	e.valid = false
}

// lcssFor maps a fragment index to its LCSS signalling value
func lcssFor(index int) byte {
	switch index {
	case 0:
		return LCSSFirstFragment
	case EmbeddedFragments - 1:
		return LCSSLastFragment
	default:
		return LCSSContinuation
	}
}

// Fragment produces the 7-byte embedded region content for fragment index
// 0-3. The fragmented stream carries lc[0..8] followed by the checksum and
// two pad bytes.
func (e *EmbeddedData) Fragment(index int) []byte {
	region := make([]byte, SyncLength)
	if index < 0 || index >= EmbeddedFragments {
		return region
	}

	var stream [12]byte
	copy(stream[:9], e.lc[:])
	stream[9] = e.checksum

	region[0] = e.colorCode
	region[1] = e.colorCode<<4 | lcssFor(index)<<1
	copy(region[2:5], stream[index*3:index*3+3])
	region[5] = byte(index)
	region[6] = e.checksum << 4 & 0xF0
	return region
}

// AddFragment consumes the embedded region of one received burst. Returns
// true when the fragment completed a full, checksum-valid LC.
func (e *EmbeddedData) AddFragment(region []byte) bool {
	if len(region) < SyncLength {
		return false
	}

	index := int(region[5])
	if index < 0 || index >= EmbeddedFragments {
		return false
	}

	copy(e.frags[index][:], region[2:5])
	e.seen[index] = true

	for _, s := range e.seen {
		if !s {
			return false
		}
	}

	var stream [12]byte
	for i := 0; i < EmbeddedFragments; i++ {
		copy(stream[i*3:i*3+3], e.frags[i][:])
	}

	if lcChecksum(stream[:9]) != stream[9] {
		e.Reset()
		return false
	}

	copy(e.lc[:], stream[:9])
	e.valid = true
	return true
}

// Valid reports whether a complete LC has been reassembled
func (e *EmbeddedData) Valid() bool {
	return e.valid
}

// LC returns the current full LC
func (e *EmbeddedData) LC() []byte {
	lc := make([]byte, 9)
	copy(lc, e.lc[:])
	return lc
}

// InsertEmbedded inserts an embedded fragment into a burst body under the
// same nibble mask as voice sync
func InsertEmbedded(body []byte, region []byte) {
	InsertVoiceSync(body, region)
}
