package types

// Frame is one tracking frame as reported by the device. Timestamp is in
// device time units (microseconds on Leap hardware).
type Frame struct {
	ID               int64   `json:"id" cbor:"id" yaml:"id"`
	Timestamp        int64   `json:"timestamp" cbor:"timestamp" yaml:"timestamp"`
	CurrentFrameRate float64 `json:"current_frame_rate" cbor:"current_frame_rate" yaml:"current_frame_rate"`
	Hands            int     `json:"hands" cbor:"hands" yaml:"hands"`
	Pointables       int     `json:"pointables" cbor:"pointables" yaml:"pointables"`
}
