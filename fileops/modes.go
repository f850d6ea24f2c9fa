package fileops

// POSIX file type and permission bits, reproduced here because bmpfs
// stores them verbatim in Inode.Mode (spec §3) and needs them to interpret
// open() flags and getattr() results without a syscall-package dependency
// on non-Unix build targets.
const (
	modeIXOTH = 1 << iota
	modeIWOTH
	modeIROTH
	modeIXGRP
	modeIWGRP
	modeIRGRP
	modeIXUSR
	modeIWUSR
	modeIRUSR
)

// ModeIFDIR and ModeIFREG are the two file-type bits bmpfs ever sets in
// Inode.Mode; the flat namespace has no other object kinds.
const (
	ModeIFREG = 0100000
	ModeIFDIR = 0040000
)

const modePermMask = 0777

// OpenFlags describes the read/write intent of an open() call (spec
// §4.H's open operation). It intentionally mirrors only the parts of
// POSIX open(2) flags the spec cares about; the host protocol adapter is
// responsible for translating its own flag representation into this.
type OpenFlags struct {
	Read  bool
	Write bool
}
