package state

var (
	tokenMetadataKeyBytes = []byte("token/metadata")
	tokenSupplyKeyBytes   = []byte("token/supply")
	accountPrefix         = []byte("account/")
	allowancePrefix       = []byte("allowance/")
)

func accountKey(addr [20]byte) []byte {
	buf := make([]byte, 0, len(accountPrefix)+len(addr))
	buf = append(buf, accountPrefix...)
	return append(buf, addr[:]...)
}

func allowanceKey(owner, spender [20]byte) []byte {
	buf := make([]byte, 0, len(allowancePrefix)+len(owner)+1+len(spender))
	buf = append(buf, allowancePrefix...)
	buf = append(buf, owner[:]...)
	buf = append(buf, '/')
	return append(buf, spender[:]...)
}
