// Package attachment manages binary payloads attached to note sessions.
//
// An attachment keeps its original bytes alongside detected MIME type and a
// coarse Kind classification used for payload assembly and display. Display
// handles (mem:// URIs) are ephemeral process-local identifiers issued by the
// Registry; they are never persisted and are reissued on every load.
package attachment

import (
	"encoding/base64"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind is a coarse classification of an attachment, derived from its MIME type.
type Kind string

const (
	KindImage        Kind = "image"
	KindPDF          Kind = "pdf"
	KindAudio        Kind = "audio"
	KindDocument     Kind = "document"
	KindSpreadsheet  Kind = "spreadsheet"
	KindPresentation Kind = "presentation"
	KindText         Kind = "text"
	KindUnknown      Kind = "unknown"
)

// Ref is an attachment owned by a note session.
//
// Zero values:
//   - ID: uuid.Nil (invalid, assigned by NewRef)
//   - Filename: "" (display only, duplicates allowed within a session)
//   - Data: nil (empty payload allowed)
//   - DisplayHandle: "" (not yet registered)
type Ref struct {
	ID       uuid.UUID
	Filename string
	MIME     string
	Data     []byte
	Kind     Kind

	// DisplayHandle is the ephemeral mem:// URI the UI uses to reference
	// this payload. Issued by a Registry, revoked on detach, never stored.
	DisplayHandle string

	CreatedAt time.Time
}

// NewRef creates an attachment from raw bytes, detecting MIME type and Kind.
// The data slice is copied; the Ref owns its payload and treats it as
// immutable from then on.
func NewRef(filename string, data []byte) *Ref {
	owned := make([]byte, len(data))
	copy(owned, data)

	mediaType, kind := Detect(filename, owned)
	return &Ref{
		ID:        uuid.New(),
		Filename:  filename,
		MIME:      mediaType,
		Data:      owned,
		Kind:      kind,
		CreatedAt: time.Now(),
	}
}

// Clone returns a copy sharing the immutable payload bytes but carrying a
// fresh identity and no display handle. Used when duplicating a session.
func (r *Ref) Clone() *Ref {
	return &Ref{
		ID:        uuid.New(),
		Filename:  r.Filename,
		MIME:      r.MIME,
		Data:      r.Data,
		Kind:      r.Kind,
		CreatedAt: r.CreatedAt,
	}
}

// DataURL renders the payload as a data: URL suitable for inline embedding
// and for multimodal request parts.
func (r *Ref) DataURL() string {
	return "data:" + r.MIME + ";base64," + base64.StdEncoding.EncodeToString(r.Data)
}

// mimeByExt maps lowercase file extensions to MIME types for formats the
// content sniffer cannot identify (Office documents all sniff as zip).
var mimeByExt = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".pdf":  "application/pdf",
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".m4a":  "audio/mp4",
	".ogg":  "audio/ogg",
	".flac": "audio/flac",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".rtf":  "application/rtf",
	".odt":  "application/vnd.oasis.opendocument.text",
	".xls":  "application/vnd.ms-excel",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".csv":  "text/csv",
	".ods":  "application/vnd.oasis.opendocument.spreadsheet",
	".ppt":  "application/vnd.ms-powerpoint",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	".odp":  "application/vnd.oasis.opendocument.presentation",
	".txt":  "text/plain",
	".md":   "text/markdown",
	".html": "text/html",
}

// Detect determines the MIME type of an attachment using http.DetectContentType
// (magic bytes, not extension). The extension is consulted only when sniffing
// comes back generic: octet-stream for unrecognized formats, zip for Office
// containers, text/plain for anything textual.
func Detect(filename string, data []byte) (mediaType string, kind Kind) {
	mediaType = "application/octet-stream"
	if len(data) > 0 {
		mediaType = http.DetectContentType(data)
		if i := strings.IndexByte(mediaType, ';'); i >= 0 {
			mediaType = strings.TrimSpace(mediaType[:i])
		}
	}

	switch mediaType {
	case "application/octet-stream", "application/zip", "text/plain":
		ext := strings.ToLower(filepath.Ext(filename))
		if byExt, ok := mimeByExt[ext]; ok {
			mediaType = byExt
		}
	}

	return mediaType, KindOf(mediaType)
}

// KindOf classifies a MIME type. Specific types are checked before the broad
// text/ prefix so text/csv lands in spreadsheet, not text.
func KindOf(mediaType string) Kind {
	switch {
	case strings.HasPrefix(mediaType, "image/"):
		return KindImage
	case mediaType == "application/pdf":
		return KindPDF
	case strings.HasPrefix(mediaType, "audio/"), mediaType == "application/ogg":
		return KindAudio
	}

	switch mediaType {
	case "application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/rtf",
		"application/vnd.oasis.opendocument.text":
		return KindDocument
	case "text/csv",
		"application/vnd.ms-excel",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"application/vnd.oasis.opendocument.spreadsheet":
		return KindSpreadsheet
	case "application/vnd.ms-powerpoint",
		"application/vnd.openxmlformats-officedocument.presentationml.presentation",
		"application/vnd.oasis.opendocument.presentation":
		return KindPresentation
	}

	if strings.HasPrefix(mediaType, "text/") {
		return KindText
	}
	return KindUnknown
}
