// Package stitch pairs each rendered clip with its narration and joins the
// segments into one video.
//
// Every segment lasts exactly as long as its audio. A clip shorter than the
// audio holds its last frame; a longer clip is trimmed. Segments are encoded
// to a uniform format first so the concat demuxer can join them without a
// second encode.
package stitch
