package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var passport = Descriptor{Ordinal: 1, Label: "Passport copy", Required: true, FieldKey: "passportCopy"}

func TestSlot_UploadedIffFileHeld(t *testing.T) {
	s := NewSlot(passport)
	assert.False(t, s.Uploaded())
	assert.Nil(t, s.File())
	assert.False(t, s.Satisfied())

	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s.Attach(&LocalFile{FileName: "passport.jpg", Data: []byte("jpeg")}, at)
	assert.True(t, s.Uploaded())
	assert.NotNil(t, s.File())
	assert.True(t, s.Satisfied())
	assert.Equal(t, "passport.jpg", s.DisplayName())
	assert.Equal(t, int64(4), s.SizeBytes())
	assert.Equal(t, at, s.UploadedAt())

	s.Clear()
	assert.False(t, s.Uploaded())
	assert.Nil(t, s.File())
	assert.Empty(t, s.DisplayName())
	assert.True(t, s.UploadedAt().IsZero())

	s.Attach(nil, at)
	assert.False(t, s.Uploaded(), "attaching nil clears")
}

func TestRemoteFileSatisfiesSlot(t *testing.T) {
	s := NewSlot(passport)
	s.Attach(&RemoteFile{FileName: "passport.jpg", URL: "https://files.example/p.jpg"}, time.Time{})
	assert.True(t, s.Satisfied())
	assert.False(t, IsLocal(s.File()))
}

func TestDocumentSet_Exclusivity(t *testing.T) {
	ds := DocumentSet{
		General:  NewDocuments([]Descriptor{passport}),
		Specific: Specific{Kind: VisaTypeStudent, Slots: NewDocuments([]Descriptor{{FieldKey: "studentId", Required: true}})},
	}

	assert.NotNil(t, ds.Student())
	assert.Nil(t, ds.Business())
	assert.Nil(t, ds.JobHolder())
	assert.Nil(t, ds.Other())

	_, ok := ds.Lookup("studentId")
	assert.True(t, ok)
	_, ok = ds.Lookup("tradeLicense")
	assert.False(t, ok)
	assert.Len(t, ds.All(), 2)
}

func TestDocumentSet_CloneIsIndependent(t *testing.T) {
	ds := DocumentSet{General: NewDocuments([]Descriptor{passport})}
	snap := ds.Clone()

	ds.General[0].Attach(&LocalFile{FileName: "a.jpg", Data: []byte("a")}, time.Now())

	require.Len(t, snap.General, 1)
	assert.False(t, snap.General[0].Uploaded())
}

func TestDocuments_MissingRequired(t *testing.T) {
	docs := NewDocuments([]Descriptor{
		passport,
		{FieldKey: "hotelBooking", Required: false},
	})
	assert.Equal(t, []Descriptor{passport}, docs.MissingRequired())

	docs[0].Attach(&LocalFile{FileName: "p", Data: []byte("p")}, time.Now())
	assert.Empty(t, docs.MissingRequired())
	assert.Len(t, docs.Satisfied(), 1)
}

func TestParseVisaType(t *testing.T) {
	vt, err := ParseVisaType("JobHolder")
	require.NoError(t, err)
	assert.Equal(t, VisaTypeJobHolder, vt)

	vt, err = ParseVisaType(" ")
	require.NoError(t, err)
	assert.Equal(t, VisaTypeUnset, vt)
	assert.False(t, vt.IsKnown())

	_, err = ParseVisaType("tourist")
	assert.Error(t, err)

	assert.Equal(t, "jobHolderDocuments", VisaTypeJobHolder.DocumentsField())
	assert.Empty(t, VisaTypeUnset.DocumentsField())
}
