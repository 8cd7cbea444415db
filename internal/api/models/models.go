// Package models holds the request and response bodies of the HTTP API.
package models

import (
	"github.com/smazurov/hwcodec/internal/encoders"
	"github.com/smazurov/hwcodec/internal/hwcodec"
)

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version       string `json:"version" example:"dev" doc:"Application version"`
	GitCommit     string `json:"git_commit" example:"abc123" doc:"Git commit hash"`
	BuildDate     string `json:"build_date" example:"2025-01-01T00:00:00Z" doc:"Build timestamp"`
	GoVersion     string `json:"go_version" example:"go1.24.0" doc:"Go compiler version"`
	Platform      string `json:"platform" example:"linux/amd64" doc:"Target platform"`
	FFmpegVersion string `json:"ffmpeg_version" example:"7.1.1" doc:"Version of the ffmpeg binary in use"`
}

type VersionResponse struct {
	Body VersionData
}

// Encoder models
type EncodersInput struct {
	Search string `query:"search" example:"nvenc" doc:"Filter by name or description"`
	All    bool   `query:"all" doc:"Include software encoders"`
}

type EncoderData struct {
	Encoders []encoders.Encoder `json:"encoders" doc:"Video encoders compiled into ffmpeg"`
	Count    int                `json:"count" example:"4" doc:"Number of encoders"`
}

type EncodersResponse struct {
	Body EncoderData
}

// Driver models
type DriverInfo struct {
	Name      string `json:"name" example:"ffmpeg_vram" doc:"Backend family"`
	Supported bool   `json:"supported" doc:"Whether the driver can run on this host"`
}

type DriversData struct {
	Drivers  []DriverInfo `json:"drivers" doc:"Backend families"`
	Adapters []int64      `json:"adapters" doc:"LUIDs of the DRM render nodes present"`
}

type DriversResponse struct {
	Body DriversData
}

// Probe models
type ProbeEncodeRequestData struct {
	Driver   string  `json:"driver,omitempty" enum:"ffmpeg_vram,mfx" default:"ffmpeg_vram" doc:"Backend family"`
	API      string  `json:"api,omitempty" enum:"dx11,vaapi,cuda,qsv" default:"vaapi" doc:"Hardware API"`
	Format   string  `json:"format,omitempty" enum:"h264,hevc" default:"h264" doc:"Coded format"`
	Encoder  string  `json:"encoder,omitempty" example:"h264_vaapi" doc:"Explicit FFmpeg encoder, overrides driver and API resolution"`
	Width    int     `json:"width,omitempty" minimum:"16" maximum:"8192" default:"1280" doc:"Frame width"`
	Height   int     `json:"height,omitempty" minimum:"16" maximum:"8192" default:"720" doc:"Frame height"`
	Kbs      int     `json:"kbs,omitempty" minimum:"0" default:"4000" doc:"Bitrate in kbit/s"`
	FPS      int     `json:"fps,omitempty" minimum:"1" maximum:"240" default:"30" doc:"Frame rate"`
	GOP      int     `json:"gop,omitempty" minimum:"1" default:"60" doc:"GOP size"`
	LUIDs    []int64 `json:"luids,omitempty" doc:"Adapters to probe, every render node when empty"`
	MaxDescs int     `json:"max_descs,omitempty" minimum:"1" maximum:"16" default:"4" doc:"Maximum descriptors returned"`
}

type ProbeEncodeRequest struct {
	Body ProbeEncodeRequestData
}

type ProbeEncodeData struct {
	Adapters []hwcodec.AdapterDesc `json:"adapters" doc:"Working encoders per adapter"`
	Count    int                   `json:"count" example:"1" doc:"Number of descriptors"`
}

type ProbeEncodeResponse struct {
	Body ProbeEncodeData
}

// Validation models
type ValidationResponse struct {
	Body encoders.ValidationResults
}
