// Package audio provides the runtime collaborators of the playback
// controller: a shared oto/v3 output, an ffmpeg-backed recording player, an
// espeak-ng speech synthesizer and call-recording mocks of both.
package audio
