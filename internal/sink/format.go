package sink

import (
	"errors"
	"fmt"
	"time"

	"fluxrender/internal/deps"
)

var (
	// ErrEncoderUnsupported reports that no preferred output format can be
	// encoded by the local ffmpeg.
	ErrEncoderUnsupported = errors.New("no supported encoder")
	// ErrEncodingFailed reports a session that produced no usable output.
	ErrEncodingFailed = errors.New("encoding failed")
)

// Format is one entry of the output preference list.
type Format struct {
	MIMEType   string
	Extension  string
	VideoCodec string
	AudioCodec string
}

// Preferences is the output format order, most widely playable first.
var Preferences = []Format{
	{MIMEType: "video/mp4;codecs=avc1", Extension: "mp4", VideoCodec: "libx264", AudioCodec: "aac"},
	{MIMEType: "video/webm;codecs=vp9,opus", Extension: "webm", VideoCodec: "libvpx-vp9", AudioCodec: "libopus"},
	{MIMEType: "video/webm;codecs=vp8,opus", Extension: "webm", VideoCodec: "libvpx", AudioCodec: "libopus"},
	{MIMEType: "video/webm", Extension: "webm", VideoCodec: "libvpx", AudioCodec: "libvorbis"},
}

// SelectFormat returns the first preferred format whose video encoder is
// available. The audio encoder is optional; a format without it renders
// silent output.
func SelectFormat(available deps.EncoderSet) (Format, error) {
	for _, f := range Preferences {
		if available.Has(f.VideoCodec) {
			return f, nil
		}
	}
	return Format{}, ErrEncoderUnsupported
}

// Artifact is a finished render.
type Artifact struct {
	Data      []byte
	MIMEType  string
	Extension string
	Filename  string
	Frames    int
	Bytes     int64
	HasAudio  bool
}

// ArtifactFilename synthesizes the download name for a render finished at t.
func ArtifactFilename(t time.Time, ext string) string {
	return fmt.Sprintf("fluxrender_%d.%s", t.UnixMilli(), ext)
}
