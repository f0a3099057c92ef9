// Package render drives the external animation tool once per scene and
// reports a Clip for every requested scene.
//
// Scene invocations are independent. A failed scene yields a Clip with OK
// false and never aborts its siblings. Callers that only have file paths from
// an external tool can recover slide positions with ParseSceneIndex.
package render
