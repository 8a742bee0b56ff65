package audio

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bogem/id3v2"
	"github.com/hearthis-dl/hearthis-dl/internal/model"
)

// Taggable reports whether files with the given extension carry an embedded
// tag container this package can write. Only the common lossy container is
// tag-capable here; lossless downloads are left untouched and keep whatever
// the site shipped.
func Taggable(ext string) bool {
	return strings.EqualFold(ext, ".mp3")
}

// Tagger writes normalized tag records into MP3 files.
//
// Writes are overwrites: pre-existing comment and cover frames are removed
// before the new values go in, so repeated runs never accumulate duplicate
// frames.
type Tagger struct{}

// NewTagger creates a Tagger.
func NewTagger() *Tagger {
	return &Tagger{}
}

// WriteTags writes tags into the file at path. Optional fields (album,
// track number, publisher, comment, cover) are only written when set;
// absent optional fields leave the corresponding frames alone.
//
// Tagging is performed on the staged file before it is renamed into place,
// so a crash mid-pipeline never leaves a final-named file missing its tags.
func (t *Tagger) WriteTags(path string, tags model.Tags) error {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("open tags in %s: %w", path, err)
	}
	defer tag.Close()

	tag.SetTitle(tags.Title)
	tag.SetArtist(tags.Artist)
	tag.SetGenre(tags.Genre)
	tag.AddTextFrame("TDRC", id3v2.EncodingUTF8, tags.Date)

	// WOAR is a URL frame: raw Latin-1 body, no encoding byte.
	if tags.Website != "" {
		tag.AddFrame("WOAR", id3v2.UnknownFrame{Body: []byte(tags.Website)})
	}

	if tags.Album != "" {
		tag.SetAlbum(tags.Album)
	}
	if tags.TrackNumber > 0 {
		tag.AddTextFrame("TRCK", id3v2.EncodingUTF8, strconv.Itoa(tags.TrackNumber))
	}
	if tags.Publisher != "" {
		tag.AddTextFrame("TCOP", id3v2.EncodingUTF8, tags.Publisher)
		tag.AddTextFrame("TPUB", id3v2.EncodingUTF8, tags.Publisher)
	}

	if tags.Comment != "" {
		tag.DeleteFrames(tag.CommonID("Comments"))
		tag.AddCommentFrame(id3v2.CommentFrame{
			Encoding: id3v2.EncodingUTF8,
			Language: "eng",
			Text:     tags.Comment,
		})
	}

	if tags.Cover != nil {
		tag.DeleteFrames(tag.CommonID("Attached picture"))
		tag.AddAttachedPicture(id3v2.PictureFrame{
			Encoding:    id3v2.EncodingUTF8,
			MimeType:    "image/jpeg",
			PictureType: id3v2.PTFrontCover,
			Description: "Cover",
			Picture:     tags.Cover,
		})
	}

	if err := tag.Save(); err != nil {
		return fmt.Errorf("save tags to %s: %w", path, err)
	}
	return nil
}
