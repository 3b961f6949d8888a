package images

import (
	"errors"
	"strings"
	"testing"

	"github.com/matryer/is"
)

func TestDeleteCustomBackground(t *testing.T) {
	is := is.New(t)

	s, err := New(t.TempDir())
	is.NoErr(err)

	is.NoErr(s.SaveCustomBackground("AA:BB:CC:DD:EE:FF", strings.NewReader("png")))
	is.True(s.HasCustomBackground("AA:BB:CC:DD:EE:FF"))

	is.NoErr(s.DeleteCustomBackground("AA:BB:CC:DD:EE:FF"))
	is.True(!s.HasCustomBackground("AA:BB:CC:DD:EE:FF"))

	is.NoErr(s.DeleteCustomBackground("AA:BB:CC:DD:EE:FF"))
}

func TestSensorIDsCannotEscapeDirectory(t *testing.T) {
	is := is.New(t)

	s, err := New(t.TempDir())
	is.NoErr(err)

	p, err := s.path("../../etc/passwd")
	is.NoErr(err)
	is.True(!strings.Contains(p, "/../"))

	is.True(errors.Is(s.DeleteCustomBackground(".."), ErrInvalidSensorID))
}
