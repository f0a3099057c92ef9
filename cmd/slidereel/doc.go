// Command slidereel is the operator CLI for the narrated slide-video pipeline.
//
// It works directly against the configured database and artifact store:
// import and list scripts, run or queue generation jobs, inspect and cancel
// jobs, run a janitor pass and check external tool availability. A running
// slidereeld daemon notices cancellations made here on its next watch tick.
package main
