package blockchain

import "github.com/ethereum/go-ethereum/rlp"

func rlpEncode(v interface{}) ([]byte, error) { return rlp.EncodeToBytes(v) }
func rlpDecode(b []byte, v interface{}) error { return rlp.DecodeBytes(b, v) }
