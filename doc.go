// Package exifgps injects or replaces GPS location metadata (position, UTC
// timestamp, speed, elevation, bearing) in the EXIF/TIFF metadata block of
// JPEG and TIFF images, preserving all other metadata.
//
// It is the file-writing core of a photo geotagging workflow: the caller
// correlates photos with a GPS track and supplies the computed reading, this
// package produces the updated file.
package exifgps
