package extensions

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rstms/isoburn/pkg/iso9660/encoding"
)

// pxEntry builds a raw "PX" System Use entry. withSerial controls whether
// the optional trailing 8-byte file serial number (inode) field is present.
func pxEntry(mode, links, uid, gid, serial uint32, withSerial bool) []byte {
	length := byte(4 + 32)
	if withSerial {
		length = 4 + 40
	}
	buf := []byte{'P', 'X', length, ROCK_RIDGE_VERSION}
	m := encoding.MarshalBothByteOrders32(mode)
	l := encoding.MarshalBothByteOrders32(links)
	u := encoding.MarshalBothByteOrders32(uid)
	g := encoding.MarshalBothByteOrders32(gid)
	buf = append(buf, m[:]...)
	buf = append(buf, l[:]...)
	buf = append(buf, u[:]...)
	buf = append(buf, g[:]...)
	if withSerial {
		s := encoding.MarshalBothByteOrders32(serial)
		buf = append(buf, s[:]...)
	}
	return buf
}

func TestUnmarshalRockRidgePXWithoutSerialNumber(t *testing.T) {
	rr, err := UnmarshalRockRidge(pxEntry(0100644, 1, 500, 500, 0, false))
	require.NoError(t, err)
	require.NotNil(t, rr.Permissions)
	require.Nil(t, rr.FileSerialNumber)
}

func TestUnmarshalRockRidgePXWithSerialNumber(t *testing.T) {
	rr, err := UnmarshalRockRidge(pxEntry(0100644, 2, 500, 500, 777, true))
	require.NoError(t, err)
	require.NotNil(t, rr.UID)
	require.EqualValues(t, 500, *rr.UID)
	require.NotNil(t, rr.FileSerialNumber)
	require.EqualValues(t, 777, *rr.FileSerialNumber)
}
