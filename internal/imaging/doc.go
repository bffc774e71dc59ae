// Package imaging provides the pixel operations behind the processing
// backend: decoding and caching source scans, cropping user regions,
// rotating, preparing images for recognition, and encoding results as PNG
// data URLs.
//
// # Coordinate System
//
// All pixel coordinates are 0-based with (0,0) at the top-left corner, X
// increasing rightward and Y increasing downward. Regions are given as
// (x, y, width, height) in the source image before rotation.
//
// # Rotation
//
// Rotation angles are whole degrees, clockwise, normalized into [0, 360).
//
// # Preprocessing
//
// Preprocess converts to CIE L* lightness (go-colorful), removes speckle
// with a median filter, optionally blurs (bild), and binarizes with either a
// fixed level 0-255 or an Otsu level chosen from the image histogram.
//
// # Thread Safety
//
// ImageCache is safe for concurrent use. All other functions are stateless
// and never modify their input image.
package imaging
