package ble

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// GATT identifiers of the cuff's blood-pressure notification.
const (
	ServiceUUID        = "000018f0-0000-1000-8000-00805f9b34fb"
	CharacteristicUUID = "00002af0-0000-1000-8000-00805f9b34fb"
)

// frame offsets, one byte each
const (
	offsetSystolic  = 6
	offsetDiastolic = 8
	offsetPulse     = 10
	minFrameLen     = offsetPulse + 1
)

var (
	ErrShortFrame       = errors.New("ble frame too short")
	ErrEmptyMeasurement = errors.New("ble frame carries no measurement")
	ErrBadEncoding      = errors.New("ble payload not decodable")
)

// Encoding how the phone-side BLE stack forwards the characteristic value.
type Encoding string

const (
	EncodingBase64 Encoding = "base64"
	EncodingRaw    Encoding = "raw"
)

func ParseEncoding(s string) (Encoding, error) {
	switch enc := Encoding(strings.ToLower(strings.TrimSpace(s))); enc {
	case "":
		return EncodingBase64, nil
	case EncodingBase64, EncodingRaw:
		return enc, nil
	}
	return "", fmt.Errorf("unknown payload encoding %q", s)
}

// Measurement one decoded cuff reading (mmHg, bpm).
type Measurement struct {
	Systolic  int `json:"systolic"`
	Diastolic int `json:"diastolic"`
	Pulse     int `json:"pulse"`
}

// DecodeMeasurement reads a cuff frame forwarded with the given encoding.
// Raw payloads are never guessed at, so any byte values are accepted.
func DecodeMeasurement(payload []byte, enc Encoding) (Measurement, error) {
	frame := payload
	if enc != EncodingRaw {
		decoded, err := base64.StdEncoding.DecodeString(string(bytes.TrimSpace(payload)))
		if err != nil {
			return Measurement{}, fmt.Errorf("%w: %v", ErrBadEncoding, err)
		}
		frame = decoded
	}

	if len(frame) < minFrameLen {
		return Measurement{}, fmt.Errorf("%w: %d bytes, need %d", ErrShortFrame, len(frame), minFrameLen)
	}

	m := Measurement{
		Systolic:  int(frame[offsetSystolic]),
		Diastolic: int(frame[offsetDiastolic]),
		Pulse:     int(frame[offsetPulse]),
	}
	if m.Systolic == 0 || m.Diastolic == 0 || m.Pulse == 0 {
		return Measurement{}, ErrEmptyMeasurement
	}
	return m, nil
}
