// Package narration synthesizes one audio file per slide by shelling out to a
// text-to-speech command. Output order matches input order.
package narration
