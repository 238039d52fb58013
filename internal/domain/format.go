package domain

import (
	"fmt"
	"strings"
)

// Format is a requested output format
type Format string

const (
	FormatMP3 Format = "mp3"
	FormatWAV Format = "wav"
	FormatM4A Format = "m4a"
	FormatAAC Format = "aac"
	FormatMP4 Format = "mp4"
)

// SupportedFormats lists every format in the order they are offered to users
var SupportedFormats = []Format{FormatMP3, FormatWAV, FormatM4A, FormatAAC, FormatMP4}

// ParseFormat normalizes user input and rejects anything outside SupportedFormats
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if !ValidateFormat(f) {
		return "", fmt.Errorf("%w: %q (expected one of %s)", ErrUnsupportedFormat, s, FormatChoices())
	}
	return f, nil
}

// ValidateFormat checks if a format is supported
func ValidateFormat(f Format) bool {
	for _, supported := range SupportedFormats {
		if f == supported {
			return true
		}
	}
	return false
}

// FormatChoices renders SupportedFormats as "mp3/wav/m4a/aac/mp4"
func FormatChoices() string {
	names := make([]string, len(SupportedFormats))
	for i, f := range SupportedFormats {
		names[i] = string(f)
	}
	return strings.Join(names, "/")
}

// EncodingProfile holds the encoder parameters for one output format.
// Empty codec fields and a zero bitrate leave the encoder default in place.
type EncodingProfile struct {
	Container        string `json:"container"`
	Muxer            string `json:"muxer"` // ffmpeg muxer that writes Container
	AudioCodec       string `json:"audio_codec,omitempty"`
	AudioBitrateKbps int    `json:"audio_bitrate_kbps,omitempty"`
	VideoCodec       string `json:"video_codec,omitempty"`
}

// HasVideo reports whether the profile keeps a video track
func (p EncodingProfile) HasVideo() bool {
	return p.VideoCodec != ""
}

var profiles = map[Format]EncodingProfile{
	FormatMP3: {Container: "mp3", Muxer: "mp3", AudioBitrateKbps: 128},
	FormatWAV: {Container: "wav", Muxer: "wav", AudioCodec: "pcm_s16le"},
	FormatM4A: {Container: "m4a", Muxer: "ipod", AudioCodec: "aac", AudioBitrateKbps: 128},
	FormatAAC: {Container: "aac", Muxer: "adts", AudioCodec: "aac", AudioBitrateKbps: 128},
	FormatMP4: {Container: "mp4", Muxer: "mp4", AudioCodec: "aac", VideoCodec: "libx264"},
}

// ProfileFor returns the fixed encoding profile for a format
func ProfileFor(f Format) (EncodingProfile, error) {
	profile, ok := profiles[f]
	if !ok {
		return EncodingProfile{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, f)
	}
	return profile, nil
}

// StreamMode selects which tracks are pulled from the source
type StreamMode string

const (
	ModeAudioOnly      StreamMode = "audio_only"
	ModeVideoPlusAudio StreamMode = "video_plus_audio"
)

// QualityTier selects which of the matching source streams is preferred
type QualityTier string

const (
	QualityHighestAudio QualityTier = "highest_audio"
	QualityHighestVideo QualityTier = "highest_video"
)

// StreamSpec describes the source stream a job asks the provider for
type StreamSpec struct {
	Mode    StreamMode  `json:"mode"`
	Quality QualityTier `json:"quality"`
}

// SelectStream maps a format to the stream it needs.
// mp4 keeps the picture; everything else is audio only.
func SelectStream(f Format) StreamSpec {
	if f == FormatMP4 {
		return StreamSpec{Mode: ModeVideoPlusAudio, Quality: QualityHighestVideo}
	}
	return StreamSpec{Mode: ModeAudioOnly, Quality: QualityHighestAudio}
}
