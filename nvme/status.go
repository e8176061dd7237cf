package nvme

import "errors"

// Error kinds returned by the driver layer, per spec §4.3's status table
// and §7's error taxonomy. Kept distinct from the VFS bridge's engine
// return codes (vfs maps these down at the boundary) so a timeout is never
// confused with a media error internally even though the SQL engine only
// sees one collapsed error surface (spec §9).
var (
	ErrMisuse      = errors.New("nvme: invalid opcode or field (driver bug)")
	ErrIoRead      = errors.New("nvme: data transfer error (read)")
	ErrIoWrite     = errors.New("nvme: data transfer error (write)")
	ErrCorruption  = errors.New("nvme: unrecoverable media error")
	ErrBusy        = errors.New("nvme: namespace not ready")
	ErrIoError     = errors.New("nvme: internal device error")
	ErrTimeout     = errors.New("nvme: command did not complete before deadline")
)

// Generic Command Status codes, NVMe base spec §5.22.1 (status type 0).
const (
	scSuccess            = 0x00
	scInvalidOpcode      = 0x01
	scInvalidField       = 0x02
	scDataTransferError  = 0x04 // vendor/driver convention used for read/write distinction below
	scInternalDeviceErr  = 0x06
	scNamespaceNotReady  = 0x82
)

// Media and Data Integrity Errors, status type 2.
const statusTypeMediaError = 0x2

// mapStatus converts a completion entry's status fields into the driver's
// typed error, or nil on success. isWrite disambiguates IoRead vs IoWrite
// for the data-transfer-error case, since the NVMe status code alone does
// not carry the read/write distinction spec §4.3 requires.
func mapStatus(e CQEntry, isWrite bool) error {
	if e.StatusType() == 0 && e.StatusCode() == scSuccess {
		return nil
	}
	switch e.StatusType() {
	case statusTypeMediaError:
		return ErrCorruption
	case 0:
		switch e.StatusCode() {
		case scInvalidOpcode, scInvalidField:
			return ErrMisuse
		case scDataTransferError:
			if isWrite {
				return ErrIoWrite
			}
			return ErrIoRead
		case scNamespaceNotReady:
			return ErrBusy
		case scInternalDeviceErr:
			return ErrIoError
		}
	}
	return ErrIoError
}
