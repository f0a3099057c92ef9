// Package scenegen emits the animation source file for a script: one
// Slide<i>Scene class per slide, named by slide position.
package scenegen
