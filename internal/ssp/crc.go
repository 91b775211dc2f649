package ssp

const (
	crcPolynomial = 0x8005
	crcSeed       = 0xFFFF
)

// CRC16 computes the SSP checksum over data.
//
// The algorithm is MSB-first CRC-16 with polynomial 0x8005 and seed 0xFFFF.
// Frames carry the result low byte first.
func CRC16(data []byte) uint16 {
	crc := uint16(crcSeed)
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ crcPolynomial
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// appendCRC appends the little-endian CRC of data to data.
func appendCRC(data []byte) []byte {
	crc := CRC16(data)
	return append(data, byte(crc), byte(crc>>8))
}

// checkCRC reports whether the trailing two bytes of data are the CRC of the
// bytes before them.
func checkCRC(data []byte) bool {
	if len(data) < ChecksumSize {
		return false
	}
	n := len(data) - ChecksumSize
	crc := CRC16(data[:n])
	return data[n] == byte(crc) && data[n+1] == byte(crc>>8)
}
