// Package cache holds synthesized audio. AudioCache maps script positions to
// their bytes and playable clips for the lifetime of one script, and
// DiskStore keeps compressed synthesis results on disk between runs.
package cache
