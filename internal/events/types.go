package events

// Event type constants for kelindar/event.
const (
	TypeEncoderCreated uint32 = iota + 1
	TypeEncoderReconfigured
	TypeEncoderClosed
	TypeDecoderCreated
	TypeDecoderClosed
	TypeTuningFailed
	TypeProbeCompleted
	TypeConnected
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// EncoderCreatedEvent is published once an encoder subprocess is running.
type EncoderCreatedEvent struct {
	ID        string `json:"id" example:"enc-1" doc:"Encoder instance identifier"`
	Encoder   string `json:"encoder" example:"h264_nvenc" doc:"FFmpeg encoder name"`
	Driver    string `json:"driver" example:"ffmpeg_vram" doc:"Backend family"`
	LUID      int64  `json:"luid" example:"0" doc:"Adapter identifier"`
	Width     int    `json:"width" example:"1920" doc:"Frame width"`
	Height    int    `json:"height" example:"1080" doc:"Frame height"`
	Kbs       int    `json:"kbs" example:"4000" doc:"Target bitrate in kbit/s"`
	FPS       int    `json:"fps" example:"30" doc:"Target frame rate"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for EncoderCreatedEvent.
func (e EncoderCreatedEvent) Type() uint32 { return TypeEncoderCreated }

// EncoderReconfiguredEvent is published after a live bitrate or frame rate change.
type EncoderReconfiguredEvent struct {
	ID        string `json:"id" example:"enc-1" doc:"Encoder instance identifier"`
	Encoder   string `json:"encoder" example:"h264_nvenc" doc:"FFmpeg encoder name"`
	Kbs       int    `json:"kbs" example:"2500" doc:"New bitrate in kbit/s"`
	FPS       int    `json:"fps" example:"60" doc:"New frame rate"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for EncoderReconfiguredEvent.
func (e EncoderReconfiguredEvent) Type() uint32 { return TypeEncoderReconfigured }

// EncoderClosedEvent is published when an encoder is destroyed.
type EncoderClosedEvent struct {
	ID        string `json:"id" example:"enc-1" doc:"Encoder instance identifier"`
	Encoder   string `json:"encoder" example:"h264_nvenc" doc:"FFmpeg encoder name"`
	Frames    uint64 `json:"frames" example:"1800" doc:"Access units produced"`
	ExitCode  int    `json:"exit_code" example:"0" doc:"Subprocess exit code"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for EncoderClosedEvent.
func (e EncoderClosedEvent) Type() uint32 { return TypeEncoderClosed }

// DecoderCreatedEvent is published once a decoder subprocess is running.
type DecoderCreatedEvent struct {
	ID        string `json:"id" example:"dec-1" doc:"Decoder instance identifier"`
	Format    string `json:"format" example:"H264" doc:"Input data format"`
	HWAccel   string `json:"hwaccel" example:"vaapi" doc:"FFmpeg hwaccel in use"`
	LUID      int64  `json:"luid" example:"0" doc:"Adapter identifier"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for DecoderCreatedEvent.
func (e DecoderCreatedEvent) Type() uint32 { return TypeDecoderCreated }

// DecoderClosedEvent is published when a decoder is destroyed.
type DecoderClosedEvent struct {
	ID        string `json:"id" example:"dec-1" doc:"Decoder instance identifier"`
	Frames    uint64 `json:"frames" example:"900" doc:"Frames decoded"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for DecoderClosedEvent.
func (e DecoderClosedEvent) Type() uint32 { return TypeDecoderClosed }

// TuningFailedEvent is published when a vendor option is rejected.
type TuningFailedEvent struct {
	Encoder   string `json:"encoder" example:"h264_nvenc" doc:"FFmpeg encoder name"`
	Function  string `json:"function" example:"SetQuality" doc:"Tuning function that failed"`
	Vendor    string `json:"vendor" example:"nvenc" doc:"Vendor token matched"`
	Option    string `json:"option" example:"preset" doc:"Rejected option key"`
	Error     string `json:"error" doc:"Setter error"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for TuningFailedEvent.
func (e TuningFailedEvent) Type() uint32 { return TypeTuningFailed }

// ProbeCompletedEvent is published after a capability probe.
type ProbeCompletedEvent struct {
	Kind      string   `json:"kind" example:"encode" doc:"encode or decode"`
	Driver    string   `json:"driver" example:"ffmpeg_vram" doc:"Backend family"`
	Found     []string `json:"found" doc:"Working codec names"`
	Timestamp string   `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ProbeCompletedEvent.
func (e ProbeCompletedEvent) Type() uint32 { return TypeProbeCompleted }

// ConnectedEvent opens every event stream so clients see the response
// before the first codec event.
type ConnectedEvent struct {
	Message   string `json:"message" example:"event stream connected" doc:"Connection message"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ConnectedEvent.
func (e ConnectedEvent) Type() uint32 { return TypeConnected }
