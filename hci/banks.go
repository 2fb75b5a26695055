package hci

// A BankMapper finds the memory bank that holds the word at a byte address.
// The HCI memory maintains a word-interleaved address space across its banks.
type BankMapper struct {
	WordBytes uint64
	NBanks    int
}

// NewBankMapper creates a mapper for an interleaved banked memory.
func NewBankMapper(wordBytes uint64, nBanks int) *BankMapper {
	return &BankMapper{
		WordBytes: wordBytes,
		NBanks:    nBanks,
	}
}

// Bank returns the index of the bank that serves the address.
func (m *BankMapper) Bank(address uint64) int {
	return int(address / m.WordBytes % uint64(m.NBanks))
}
