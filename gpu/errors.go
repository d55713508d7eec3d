package gpu

import "errors"

// Sentinel errors for the resource-unavailable and build-failure
// buckets. All are fatal to the operation that surfaces them.
var (
	ErrNoDevice      = errors.New("gpu: no suitable device found")
	ErrContextFailed = errors.New("gpu: context or queue creation failed")
	ErrBuildFailed   = errors.New("gpu: kernel program build failed")
	ErrDispatch      = errors.New("gpu: kernel dispatch failed")
)
