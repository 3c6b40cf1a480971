// Package ioutils provides file system and image processing utilities.
//
// # File Operations
//
//	// Ensure the output directory exists
//	err := ioutils.EnsureParentDir("output/map_1-2_3-4_16.tif")
//
// # Filename Sanitization
//
// Use SanitizeFileName to remove invalid characters from filenames:
//
//	safe := ioutils.SanitizeFileName("map: 1/2") // Returns "map_ 1_2"
//
// # Image Processing
//
// The ImageService turns a tile response body into a 3x256x256 band-major
// buffer:
//
//	svc := ioutils.NewImageService()
//	buf, err := svc.DecodeTile(body)
package ioutils
