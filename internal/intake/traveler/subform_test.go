package traveler

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visaintake/internal/intake/models"
	dErrors "visaintake/pkg/domain-errors"
	"visaintake/pkg/testutil"
)

var fixedNow = time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)

func file(name string, size int) *models.LocalFile {
	return &models.LocalFile{FileName: name, Data: bytes.Repeat([]byte{'x'}, size)}
}

func newForm(t *testing.T) *SubForm {
	t.Helper()
	return New(1, WithClock(func() time.Time { return fixedNow }))
}

func fillIdentity(t *testing.T, f *SubForm) {
	t.Helper()
	require.NoError(t, f.SetField(models.FieldGivenName, "Amina"))
	require.NoError(t, f.SetField(models.FieldSurname, "Rahman"))
	require.NoError(t, f.SetPhones("+880 1711-000000"))
	require.NoError(t, f.SetField(models.FieldEmail, "amina@example.com"))
	require.NoError(t, f.SetField(models.FieldAddress, "12 Lake Road, Dhaka"))
}

func uploadGeneral(t *testing.T, f *SubForm) {
	t.Helper()
	for _, key := range []string{"passportCopy", "passportPhoto", "bankStatement", "bankSolvency"} {
		require.NoError(t, f.SetDocument(key, file(key+".pdf", 10)))
	}
}

func problemFields(f *SubForm) []string {
	var out []string
	for _, p := range f.Problems() {
		out = append(out, p.Field)
	}
	return out
}

func TestSubForm_StudentCompleteIsValid(t *testing.T) {
	f := newForm(t)
	fillIdentity(t, f)
	require.NoError(t, f.SetVisaType(models.VisaTypeStudent))
	uploadGeneral(t, f)
	assert.False(t, f.IsValid())
	assert.Equal(t, []string{"studentDocuments.studentId"}, problemFields(f))

	require.NoError(t, f.SetDocument("studentId", file("id.jpg", 10)))
	assert.True(t, f.IsValid())
	assert.Empty(t, f.Problems())
}

func TestSubForm_BusinessWithoutBusinessDocsIsInvalid(t *testing.T) {
	f := newForm(t)
	fillIdentity(t, f)
	require.NoError(t, f.SetVisaType(models.VisaTypeBusiness))
	uploadGeneral(t, f)

	assert.False(t, f.IsValid())
	assert.ElementsMatch(t, []string{"businessDocuments.tradeLicense", "businessDocuments.companyPad"}, problemFields(f))
}

func TestSubForm_OptionalDocumentsDoNotAffectValidity(t *testing.T) {
	f := newForm(t)
	fillIdentity(t, f)
	require.NoError(t, f.SetVisaType(models.VisaTypeOther))
	uploadGeneral(t, f)

	assert.True(t, f.IsValid(), "other has no required specific documents")
	require.NoError(t, f.SetDocument("hotelBooking", file("hotel.pdf", 1)))
	require.NoError(t, f.ClearDocument("hotelBooking"))
	assert.True(t, f.IsValid())
}

func TestSubForm_VisaTypeSwitch(t *testing.T) {
	testutil.Given(t, "a business traveler with a trade license uploaded", func(t *testing.T) {
		f := newForm(t)
		fillIdentity(t, f)
		uploadGeneral(t, f)
		require.NoError(t, f.SetVisaType(models.VisaTypeBusiness))
		require.NoError(t, f.SetDocument("tradeLicense", file("license.pdf", 10)))

		testutil.When(t, "the visa type changes to student", func(t *testing.T) {
			require.NoError(t, f.SetVisaType(models.VisaTypeStudent))
			rec := f.Values()

			testutil.Then(t, "business documents are gone", func(t *testing.T) {
				assert.Nil(t, rec.Documents.Business())
				_, ok := rec.Documents.Lookup("tradeLicense")
				assert.False(t, ok)
			})
			testutil.Then(t, "student documents start empty", func(t *testing.T) {
				student := rec.Documents.Student()
				require.Len(t, student, 3)
				for _, s := range student {
					assert.False(t, s.Uploaded(), s.Key())
				}
			})
			testutil.Then(t, "general documents are kept", func(t *testing.T) {
				assert.Empty(t, rec.Documents.General.MissingRequired())
			})
			testutil.Then(t, "the form is invalid until the student id is uploaded", func(t *testing.T) {
				assert.False(t, f.IsValid())
				require.NoError(t, f.SetDocument("studentId", file("id.jpg", 10)))
				assert.True(t, f.IsValid())
			})
		})

		testutil.When(t, "switching back to business", func(t *testing.T) {
			require.NoError(t, f.SetVisaType(models.VisaTypeBusiness))
			slot, ok := f.Values().Documents.Lookup("tradeLicense")
			require.True(t, ok)
			assert.False(t, slot.Uploaded(), "the earlier upload is not restored")
		})
	})
}

func TestSubForm_ReselectingSameTypeKeepsUploads(t *testing.T) {
	f := newForm(t)
	require.NoError(t, f.SetVisaType(models.VisaTypeJobHolder))
	require.NoError(t, f.SetDocument("nocCertificate", file("noc.pdf", 1)))
	require.NoError(t, f.SetVisaType(models.VisaTypeJobHolder))

	slot, ok := f.Values().Documents.Lookup("nocCertificate")
	require.True(t, ok)
	assert.True(t, slot.Uploaded())
}

func TestSubForm_FileTooLarge(t *testing.T) {
	f := newForm(t)
	fillIdentity(t, f)
	require.NoError(t, f.SetVisaType(models.VisaTypeOther))
	uploadGeneral(t, f)
	require.True(t, f.IsValid())
	before, _ := f.Values().Documents.Lookup("passportCopy")

	err := f.SetDocument("passportCopy", file("huge.jpg", 6<<20))

	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeFileTooLarge))
	after, _ := f.Values().Documents.Lookup("passportCopy")
	assert.Equal(t, before.DisplayName(), after.DisplayName())
	assert.Equal(t, before.SizeBytes(), after.SizeBytes())
	assert.True(t, f.IsValid())

	t.Run("rejection into an empty slot leaves it empty", func(t *testing.T) {
		err := f.SetDocument("hotelBooking", file("huge.pdf", 6<<20))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeFileTooLarge))
		slot, _ := f.Values().Documents.Lookup("hotelBooking")
		assert.False(t, slot.Uploaded())
	})

	t.Run("exactly at the ceiling is accepted", func(t *testing.T) {
		assert.NoError(t, f.SetDocument("hotelBooking", file("edge.pdf", int(DefaultMaxFileSize))))
	})
}

func TestSubForm_SetDocumentRecordsMetadata(t *testing.T) {
	f := newForm(t)
	require.NoError(t, f.SetDocument("passportPhoto", file("me.jpg", 42)))

	slot, ok := f.Values().Documents.Lookup("passportPhoto")
	require.True(t, ok)
	assert.Equal(t, "me.jpg", slot.DisplayName())
	assert.Equal(t, int64(42), slot.SizeBytes())
	assert.Equal(t, fixedNow, slot.UploadedAt())
}

func TestSubForm_Errors(t *testing.T) {
	f := newForm(t)

	err := f.SetField("nickname", "x")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))

	err = f.SetField(models.FieldVisaType, "tourist")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))

	err = f.SetDocument("tradeLicense", file("l.pdf", 1))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound), "no specific map before a type is chosen")

	err = f.SetDocument("passportCopy", nil)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))

	err = f.ClearDocument("nope")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestSubForm_SetFieldPhonesAndVisaType(t *testing.T) {
	f := newForm(t)
	require.NoError(t, f.SetField(models.FieldPhones, "+8801711000000, +880 1711-000000, 01811222333"))
	require.NoError(t, f.SetField(models.FieldVisaType, "student"))

	rec := f.Values()
	assert.Equal(t, []string{"+8801711000000", "01811222333"}, rec.Identity.Phones)
	assert.Equal(t, models.VisaTypeStudent, rec.VisaType)
}

func TestSubForm_SetFieldsRejectsWholeUpdate(t *testing.T) {
	f := newForm(t)
	require.NoError(t, f.SetFields(map[string]string{
		models.FieldGivenName: "Amina",
		models.FieldVisaType:  "business",
	}))
	require.NoError(t, f.SetDocument("tradeLicense", file("l.pdf", 1)))
	calls := 0
	f.OnChange(func() { calls++ })

	for _, fields := range []map[string]string{
		{models.FieldAddress: "12 Lake Road", models.FieldVisaType: "tourist"},
		{models.FieldAddress: "12 Lake Road", "nickname": "Ami"},
	} {
		err := f.SetFields(fields)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	}

	rec := f.Values()
	assert.Empty(t, rec.Identity.Address)
	assert.Equal(t, "Amina", rec.Identity.GivenName)
	assert.Equal(t, models.VisaTypeBusiness, rec.VisaType)
	slot, _ := rec.Documents.Lookup("tradeLicense")
	assert.True(t, slot.Uploaded())
	assert.Zero(t, calls)

	require.NoError(t, f.SetFields(map[string]string{
		models.FieldAddress: "12 Lake Road",
		models.FieldPhones:  "+8801711000000",
	}))
	assert.Equal(t, 1, calls, "one notification per applied update")
	assert.Equal(t, []string{"+8801711000000"}, f.Values().Identity.Phones)
}

func TestSubForm_ChangeHook(t *testing.T) {
	f := newForm(t)
	calls := 0
	f.OnChange(func() {
		calls++
		_ = f.IsValid()
	})

	require.NoError(t, f.SetField(models.FieldGivenName, "A"))
	require.NoError(t, f.SetVisaType(models.VisaTypeStudent))
	require.NoError(t, f.SetDocument("studentId", file("id.jpg", 1)))
	require.NoError(t, f.ClearDocument("studentId"))
	_ = f.SetDocument("studentId", file("big.jpg", 6<<20))
	require.NoError(t, f.SetVisaType(models.VisaTypeStudent))

	assert.Equal(t, 4, calls, "rejected and no-op edits do not notify")

	f.OnChange(nil)
	require.NoError(t, f.SetField(models.FieldSurname, "B"))
	assert.Equal(t, 4, calls)
}

func TestSubForm_ValuesIsSnapshot(t *testing.T) {
	f := newForm(t)
	require.NoError(t, f.SetPhones("+8801711000000"))
	snap := f.Values()

	require.NoError(t, f.SetPhones("01811222333"))
	require.NoError(t, f.SetDocument("passportCopy", file("p.jpg", 1)))

	assert.Equal(t, []string{"+8801711000000"}, snap.Identity.Phones)
	slot, _ := snap.Documents.Lookup("passportCopy")
	assert.False(t, slot.Uploaded())
}

func TestFromRecord(t *testing.T) {
	remote := &models.RemoteFile{FileName: "passport.jpg", URL: "https://files.example/passport.jpg"}
	f := FromRecord(2, Record{
		RemoteID: "665f0c",
		Identity: models.Identity{GivenName: "Karim", Phones: []string{"01811222333", "01811 222333"}},
		VisaType: models.VisaTypeBusiness,
		Files: map[string]models.File{
			"passportCopy": remote,
			"tradeLicense": &models.RemoteFile{FileName: "license.pdf", URL: "https://files.example/license.pdf"},
			"studentId":    &models.RemoteFile{FileName: "stray.pdf"},
		},
	})

	rec := f.Values()
	assert.Equal(t, 2, rec.ID)
	assert.Equal(t, "665f0c", f.RemoteID())
	assert.Equal(t, []string{"01811222333"}, rec.Identity.Phones)
	assert.Equal(t, models.VisaTypeBusiness, rec.VisaType)

	slot, ok := rec.Documents.Lookup("passportCopy")
	require.True(t, ok)
	assert.True(t, slot.Satisfied())
	assert.Same(t, remote, slot.File())

	_, ok = rec.Documents.Lookup("studentId")
	assert.False(t, ok, "documents for other visa types are dropped")

	assert.ElementsMatch(t, []string{
		"surname", "email", "address",
		"generalDocuments.passportPhoto", "generalDocuments.bankStatement", "generalDocuments.bankSolvency",
		"businessDocuments.companyPad",
	}, problemFields(f))
}
