package iiif

import (
	"time"

	"github.com/golang/protobuf/proto"
)

// CacheableImage is a rendered image as stored in the thumbnails group.
type CacheableImage struct {
	ModTime []byte `protobuf:"bytes,1,opt,name=mod_time,json=modTime,proto3" json:"mod_time,omitempty"`
	Buffer  []byte `protobuf:"bytes,2,opt,name=buffer,proto3" json:"buffer,omitempty"`
	MIME    string `protobuf:"bytes,3,opt,name=mime,proto3" json:"mime,omitempty"`
}

func (m *CacheableImage) Reset()         { *m = CacheableImage{} }
func (m *CacheableImage) String() string { return proto.CompactTextString(m) }
func (*CacheableImage) ProtoMessage()    {}

func (m *CacheableImage) GetModTime() []byte {
	if m != nil {
		return m.ModTime
	}
	return nil
}

func (m *CacheableImage) GetBuffer() []byte {
	if m != nil {
		return m.Buffer
	}
	return nil
}

func (m *CacheableImage) GetMIME() string {
	if m != nil {
		return m.MIME
	}
	return ""
}

// Time decodes ModTime, the zero time when it is missing.
func (m *CacheableImage) Time() time.Time {
	var t time.Time
	_ = t.UnmarshalBinary(m.GetModTime())
	return t
}

func newCacheableImage(buf []byte, mime string, modTime time.Time) *CacheableImage {
	binTime, _ := modTime.MarshalBinary()
	return &CacheableImage{
		ModTime: binTime,
		Buffer:  buf,
		MIME:    mime,
	}
}

// Rendered is an image ready to be served or cached.
type Rendered struct {
	Buffer  []byte
	MIME    string
	ModTime time.Time
}
