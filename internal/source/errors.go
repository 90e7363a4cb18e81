package source

import "errors"

var (
	// ErrUnsupportedSource reports a file ffprobe cannot read or that carries
	// no decodable video stream.
	ErrUnsupportedSource = errors.New("unsupported source")
	// ErrPlaybackBlocked reports that playback could not start.
	ErrPlaybackBlocked = errors.New("playback blocked")
	// ErrSeekTimeout reports a seek whose first frame never arrived.
	ErrSeekTimeout = errors.New("seek timed out")
	// ErrNotLoaded reports an operation issued before Load succeeded.
	ErrNotLoaded = errors.New("no source loaded")
	// ErrDecode reports a fatal decoder failure during playback.
	ErrDecode = errors.New("decode failed")
)
