package models

import (
	"strings"
	"time"
)

// GalleryKind is the media type of a gallery item.
type GalleryKind string

const (
	GalleryPhoto         GalleryKind = "photo"
	GalleryVideo         GalleryKind = "video"
	GalleryExternalVideo GalleryKind = "external_video"
)

// GalleryKeyPrefix scopes every stored gallery object.
const GalleryKeyPrefix = "gallery/"

// Valid reports whether k is known.
func (k GalleryKind) Valid() bool {
	return k == GalleryPhoto || k == GalleryVideo || k == GalleryExternalVideo
}

// Stored reports whether items of this kind keep their media in object storage.
func (k GalleryKind) Stored() bool {
	return k == GalleryPhoto || k == GalleryVideo
}

// IsGalleryKey reports whether key stays within the gallery prefix.
func IsGalleryKey(key string) bool {
	return strings.HasPrefix(key, GalleryKeyPrefix) && !strings.Contains(key, "..")
}

// GalleryItem is one photo or video shown on the public gallery page.
type GalleryItem struct {
	ID              string      `db:"id" json:"id"`
	Kind            GalleryKind `db:"kind" json:"kind"`
	StorageKey      *string     `db:"storage_key" json:"storageKey,omitempty"`
	PublicURL       *string     `db:"public_url" json:"publicUrl,omitempty"`
	ThumbURL        *string     `db:"thumb_url" json:"thumbUrl,omitempty"`
	ContentType     *string     `db:"content_type" json:"contentType,omitempty"`
	SizeBytes       *int64      `db:"size_bytes" json:"sizeBytes,omitempty"`
	Width           *int        `db:"width" json:"width,omitempty"`
	Height          *int        `db:"height" json:"height,omitempty"`
	DurationSeconds *float64    `db:"duration_seconds" json:"durationSeconds,omitempty"`
	CaptionAR       *string     `db:"caption_ar" json:"captionAr,omitempty"`
	CaptionEN       *string     `db:"caption_en" json:"captionEn,omitempty"`
	CaptionID       *string     `db:"caption_id" json:"captionId,omitempty"`
	AltAR           *string     `db:"alt_ar" json:"altAr,omitempty"`
	AltEN           *string     `db:"alt_en" json:"altEn,omitempty"`
	AltID           *string     `db:"alt_id" json:"altId,omitempty"`
	SortOrder       int         `db:"sort_order" json:"sortOrder"`
	Published       bool        `db:"is_published" json:"isPublished"`
	CreatedAt       time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time   `db:"updated_at" json:"updatedAt"`
}

// Caption returns the caption for locale, falling back to English.
func (g *GalleryItem) Caption(locale Locale) string {
	return pickLocalized(locale, g.CaptionEN, g.CaptionAR, g.CaptionID)
}

// Alt returns the alt text for locale, falling back to English.
func (g *GalleryItem) Alt(locale Locale) string {
	return pickLocalized(locale, g.AltEN, g.AltAR, g.AltID)
}

func pickLocalized(locale Locale, en, ar, id *string) string {
	var preferred *string
	switch locale {
	case LocaleArabic:
		preferred = ar
	case LocaleIndonesian:
		preferred = id
	default:
		preferred = en
	}
	if preferred != nil && strings.TrimSpace(*preferred) != "" {
		return *preferred
	}
	if en != nil {
		return *en
	}
	return ""
}

// GalleryFilter narrows the admin gallery list. A nil Published lists everything.
type GalleryFilter struct {
	Published *bool
}

// PublicGalleryItem is the localized view served on the public gallery.
type PublicGalleryItem struct {
	ID              string      `json:"id"`
	Kind            GalleryKind `json:"kind"`
	URL             string      `json:"url"`
	ThumbURL        *string     `json:"thumbUrl,omitempty"`
	ContentType     *string     `json:"contentType,omitempty"`
	Width           *int        `json:"width,omitempty"`
	Height          *int        `json:"height,omitempty"`
	DurationSeconds *float64    `json:"durationSeconds,omitempty"`
	Caption         string      `json:"caption,omitempty"`
	Alt             string      `json:"alt,omitempty"`
}

// GalleryItemRequest creates a gallery item.
type GalleryItemRequest struct {
	Kind            GalleryKind `json:"kind" binding:"required"`
	StorageKey      *string     `json:"storageKey"`
	PublicURL       *string     `json:"publicUrl"`
	ThumbURL        *string     `json:"thumbUrl"`
	ContentType     *string     `json:"contentType"`
	SizeBytes       *int64      `json:"sizeBytes"`
	Width           *int        `json:"width"`
	Height          *int        `json:"height"`
	DurationSeconds *float64    `json:"durationSeconds"`
	CaptionAR       *string     `json:"captionAr"`
	CaptionEN       *string     `json:"captionEn"`
	CaptionID       *string     `json:"captionId"`
	AltAR           *string     `json:"altAr"`
	AltEN           *string     `json:"altEn"`
	AltID           *string     `json:"altId"`
	SortOrder       int         `json:"sortOrder"`
	Published       bool        `json:"isPublished"`
}

// GalleryItemPatch updates the fields it carries. DeleteOld removes the previous
// object when StorageKey replaces it.
type GalleryItemPatch struct {
	StorageKey      *string  `json:"storageKey"`
	PublicURL       *string  `json:"publicUrl"`
	ThumbURL        *string  `json:"thumbUrl"`
	ContentType     *string  `json:"contentType"`
	SizeBytes       *int64   `json:"sizeBytes"`
	Width           *int     `json:"width"`
	Height          *int     `json:"height"`
	DurationSeconds *float64 `json:"durationSeconds"`
	CaptionAR       *string  `json:"captionAr"`
	CaptionEN       *string  `json:"captionEn"`
	CaptionID       *string  `json:"captionId"`
	AltAR           *string  `json:"altAr"`
	AltEN           *string  `json:"altEn"`
	AltID           *string  `json:"altId"`
	SortOrder       *int     `json:"sortOrder"`
	Published       *bool    `json:"isPublished"`
	DeleteOld       bool     `json:"deleteOld"`
}

// Apply copies the set fields of p onto item.
func (p GalleryItemPatch) Apply(item *GalleryItem) {
	setString := func(dst **string, src *string) {
		if src != nil {
			v := *src
			*dst = &v
		}
	}
	setString(&item.StorageKey, p.StorageKey)
	setString(&item.PublicURL, p.PublicURL)
	setString(&item.ThumbURL, p.ThumbURL)
	setString(&item.ContentType, p.ContentType)
	setString(&item.CaptionAR, p.CaptionAR)
	setString(&item.CaptionEN, p.CaptionEN)
	setString(&item.CaptionID, p.CaptionID)
	setString(&item.AltAR, p.AltAR)
	setString(&item.AltEN, p.AltEN)
	setString(&item.AltID, p.AltID)
	if p.SizeBytes != nil {
		item.SizeBytes = p.SizeBytes
	}
	if p.Width != nil {
		item.Width = p.Width
	}
	if p.Height != nil {
		item.Height = p.Height
	}
	if p.DurationSeconds != nil {
		item.DurationSeconds = p.DurationSeconds
	}
	if p.SortOrder != nil {
		item.SortOrder = *p.SortOrder
	}
	if p.Published != nil {
		item.Published = *p.Published
	}
}

// GalleryUploadResult describes a stored gallery object ready to be attached to an item.
type GalleryUploadResult struct {
	Key         string `json:"key"`
	PublicURL   string `json:"publicUrl"`
	ContentType string `json:"contentType"`
	SizeBytes   int64  `json:"sizeBytes"`
}
