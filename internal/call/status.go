package call

// StatusView is what the operator surface renders. Projection is a pure
// function of state already written by the other components; it makes no
// control decisions.
type StatusView struct {
	State           string `json:"state"`
	Text            string `json:"text"`
	AudioLevel      int    `json:"audio_level"`
	VideoPresent    bool   `json:"video_present"`
	PlaybackPending bool   `json:"playback_pending"`
}

// Project maps (state, last error, audio level, video flag, playback flag)
// onto the display tuple. The level is only shown while connected.
func Project(state State, lastErr string, level int, videoPresent, playbackPending bool) StatusView {
	v := StatusView{State: state.String()}
	switch state {
	case StateIdle:
		v.Text = "ready to call"
	case StateAwaitingReady:
		v.Text = "calling dashcam"
	case StateOfferSent:
		v.Text = "connecting"
	case StateConnected:
		v.Text = "connected"
		v.AudioLevel = level
		v.VideoPresent = videoPresent
		v.PlaybackPending = playbackPending
		if playbackPending {
			v.Text = "connected, tap to start playback"
		}
	case StateEnded:
		v.Text = "call ended"
	case StateFailed:
		v.Text = "connection failed"
		if lastErr != "" {
			v.Text = lastErr
		}
	}
	return v
}
