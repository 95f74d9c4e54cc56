// Package artifact persists report artifacts.
//
// Every artifact becomes a text file under text_reports/ and, for English
// reports when PDF output is enabled, a PDF under pdf_reports/. File names
// are derived from the video name and the report request, so reruns replace
// earlier output instead of accumulating copies. Writes go through a temp
// file and rename while an exclusive lock on the output directory is held.
// Failed placeholders carry a FailedBanner line at the top of each file.
package artifact
