// Package artifacts manages the on-disk artifact store: per-job working
// directories and the promoted final videos and thumbnails that sit beside
// them under the videos root.
//
// Layout:
//
//	videos/
//	  video_<token>/        working directory of a render job
//	  regen_<token>/        working directory of a regeneration job
//	  video_<token>.mp4     promoted final artifact
//	  video_<token>.jpg     thumbnail
package artifacts
