package slt

import "math/big"

var bigZero = big.NewInt(0)
