package codec

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/kestrel-raid/gbf-raidfinder/internal/errs"
	"github.com/kestrel-raid/gbf-raidfinder/internal/model"
)

// The record wire format is a flat sequence of (tag byte, uvarint length,
// payload) fields. Unknown tags are skipped on decode so the format is
// forward-compatible; callers only rely on Decode(Encode(r)) == r for a
// given writer/reader pair, not on any particular tag layout.

type fieldTag byte

const (
	tagBossName fieldTag = iota + 1
	tagLevel
	tagImage
	tagLanguage
	tagENName
	tagJPName
	tagTweetID
	tagScreenName
	tagRaidID
	tagText
	tagCreated
	tagProfileImage
)

type recordWriter struct {
	buf bytes.Buffer
}

func (w *recordWriter) writeString(tag fieldTag, s string) {
	w.writeBytes(tag, []byte(s))
}

func (w *recordWriter) writeBytes(tag fieldTag, b []byte) {
	w.buf.WriteByte(byte(tag))
	var lenBuf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(lenBuf[:], uint64(len(b)))
	w.buf.Write(lenBuf[:n])
	w.buf.Write(b)
}

func (w *recordWriter) writeUint(tag fieldTag, v uint64) {
	var vb [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(vb[:], v)
	w.writeBytes(tag, vb[:n])
}

func (w *recordWriter) writeInt(tag fieldTag, v int32) {
	w.writeUint(tag, uint64(uint32(v)))
}

func (w *recordWriter) bytes() []byte { return w.buf.Bytes() }

type recordReader struct {
	r *bytes.Reader
}

// next returns the next field's tag and raw payload, or io.EOF once
// the buffer is exhausted.
func (r *recordReader) next() (fieldTag, []byte, error) {
	tagByte, err := r.r.ReadByte()
	if err != nil {
		return 0, nil, err
	}
	length, err := binary.ReadUvarint(r.r)
	if err != nil {
		return 0, nil, errs.New(errs.KindCodecDecode, "truncated length", err)
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r.r, payload); err != nil {
		return 0, nil, errs.New(errs.KindCodecDecode, "truncated payload", err)
	}
	return fieldTag(tagByte), payload, nil
}

func decodeUint(b []byte) uint64 {
	v, _ := binary.Uvarint(b)
	return v
}

func decodeInt(b []byte) int32 {
	return int32(uint32(decodeUint(b)))
}

// EncodeRaidBossRaw serializes a RaidBossRaw to the wire format.
func EncodeRaidBossRaw(r model.RaidBossRaw) []byte {
	var w recordWriter
	w.writeString(tagBossName, r.BossName)
	w.writeInt(tagLevel, r.Level)
	w.writeString(tagImage, r.Image)
	w.writeInt(tagLanguage, int32(r.Language))
	return w.bytes()
}

// DecodeRaidBossRaw parses the wire format produced by EncodeRaidBossRaw.
func DecodeRaidBossRaw(b []byte) (model.RaidBossRaw, error) {
	var out model.RaidBossRaw
	rr := &recordReader{r: bytes.NewReader(b)}
	for {
		tag, payload, err := rr.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return out, err
		}
		switch tag {
		case tagBossName:
			out.BossName = string(payload)
		case tagLevel:
			out.Level = decodeInt(payload)
		case tagImage:
			out.Image = string(payload)
		case tagLanguage:
			out.Language = model.Language(decodeInt(payload))
		}
	}
	return out, nil
}

// EncodeRaidBoss serializes a paired RaidBoss record.
func EncodeRaidBoss(b model.RaidBoss) []byte {
	var w recordWriter
	w.writeString(tagENName, b.ENName)
	w.writeString(tagJPName, b.JPName)
	w.writeInt(tagLevel, b.Level)
	w.writeString(tagImage, b.Image)
	return w.bytes()
}

// DecodeRaidBoss parses the wire format produced by EncodeRaidBoss.
func DecodeRaidBoss(data []byte) (model.RaidBoss, error) {
	var out model.RaidBoss
	rr := &recordReader{r: bytes.NewReader(data)}
	for {
		tag, payload, err := rr.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return out, err
		}
		switch tag {
		case tagENName:
			out.ENName = string(payload)
		case tagJPName:
			out.JPName = string(payload)
		case tagLevel:
			out.Level = decodeInt(payload)
		case tagImage:
			out.Image = string(payload)
		}
	}
	return out, nil
}

// EncodeRaidInvitation serializes a normalized invitation.
func EncodeRaidInvitation(inv model.RaidInvitation) []byte {
	var w recordWriter
	w.writeUint(tagTweetID, inv.TweetID)
	w.writeString(tagScreenName, inv.ScreenName)
	w.writeString(tagBossName, inv.BossName)
	w.writeString(tagRaidID, inv.RaidID)
	w.writeString(tagText, inv.Text)
	w.writeUint(tagCreated, inv.Created)
	w.writeInt(tagLanguage, int32(inv.Language))
	w.writeString(tagProfileImage, inv.ProfileImage)
	return w.bytes()
}

// DecodeRaidInvitation parses the wire format produced by EncodeRaidInvitation.
func DecodeRaidInvitation(data []byte) (model.RaidInvitation, error) {
	var out model.RaidInvitation
	rr := &recordReader{r: bytes.NewReader(data)}
	for {
		tag, payload, err := rr.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return out, err
		}
		switch tag {
		case tagTweetID:
			out.TweetID = decodeUint(payload)
		case tagScreenName:
			out.ScreenName = string(payload)
		case tagBossName:
			out.BossName = string(payload)
		case tagRaidID:
			out.RaidID = string(payload)
		case tagText:
			out.Text = string(payload)
		case tagCreated:
			out.Created = decodeUint(payload)
		case tagLanguage:
			out.Language = model.Language(decodeInt(payload))
		case tagProfileImage:
			out.ProfileImage = string(payload)
		}
	}
	return out, nil
}
