package chain

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var ErrTupleShape = errors.New("unexpected contract return shape")

// Tuple 合约调用返回的按位置排列的输出
type Tuple []interface{}

func (t Tuple) at(i int) (interface{}, error) {
	if i < 0 || i >= len(t) {
		return nil, fmt.Errorf("%w: index %d out of range %d", ErrTupleShape, i, len(t))
	}
	return t[i], nil
}

func (t Tuple) String(i int) (string, error) {
	v, err := t.at(i)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: value %d is %T, want string", ErrTupleShape, i, v)
	}
	return s, nil
}

func (t Tuple) Bool(i int) (bool, error) {
	v, err := t.at(i)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%w: value %d is %T, want bool", ErrTupleShape, i, v)
	}
	return b, nil
}

func (t Tuple) Address(i int) (common.Address, error) {
	v, err := t.at(i)
	if err != nil {
		return common.Address{}, err
	}
	a, ok := v.(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("%w: value %d is %T, want address", ErrTupleShape, i, v)
	}
	return a, nil
}

func (t Tuple) BigInt(i int) (*big.Int, error) {
	v, err := t.at(i)
	if err != nil {
		return nil, err
	}
	n, ok := v.(*big.Int)
	if !ok || n == nil {
		return nil, fmt.Errorf("%w: value %d is %T, want uint256", ErrTupleShape, i, v)
	}
	return n, nil
}

// Uint64 无符号整数输出转 uint64，uint8 到 uint64 解码为原生类型，更宽的为 *big.Int
func (t Tuple) Uint64(i int) (uint64, error) {
	v, err := t.at(i)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case uint8:
		return uint64(n), nil
	case uint16:
		return uint64(n), nil
	case uint32:
		return uint64(n), nil
	case uint64:
		return n, nil
	case *big.Int:
		if n == nil || n.Sign() < 0 || !n.IsUint64() {
			return 0, fmt.Errorf("%w: value %d overflows uint64", ErrTupleShape, i)
		}
		return n.Uint64(), nil
	}
	return 0, fmt.Errorf("%w: value %d is %T, want unsigned integer", ErrTupleShape, i, v)
}

// Uint8 ERC20 decimals 返回 uint8
func (t Tuple) Uint8(i int) (uint8, error) {
	v, err := t.at(i)
	if err != nil {
		return 0, err
	}
	d, ok := v.(uint8)
	if !ok {
		return 0, fmt.Errorf("%w: value %d is %T, want uint8", ErrTupleShape, i, v)
	}
	return d, nil
}

func (t Tuple) BigInts(i int) ([]*big.Int, error) {
	v, err := t.at(i)
	if err != nil {
		return nil, err
	}
	list, ok := v.([]*big.Int)
	if !ok {
		return nil, fmt.Errorf("%w: value %d is %T, want uint256[]", ErrTupleShape, i, v)
	}
	return list, nil
}

func (t Tuple) Addresses(i int) ([]common.Address, error) {
	v, err := t.at(i)
	if err != nil {
		return nil, err
	}
	list, ok := v.([]common.Address)
	if !ok {
		return nil, fmt.Errorf("%w: value %d is %T, want address[]", ErrTupleShape, i, v)
	}
	return list, nil
}

// TupleReader 顺序读取，记录第一个错误
type TupleReader struct {
	t   Tuple
	i   int
	err error
}

// NewTupleReader 创建顺序读取器
func NewTupleReader(values []interface{}) *TupleReader {
	return &TupleReader{t: Tuple(values)}
}

func (r *TupleReader) next() int {
	i := r.i
	r.i++
	return i
}

func (r *TupleReader) Str() string {
	s, err := r.t.String(r.next())
	r.keep(err)
	return s
}

func (r *TupleReader) Bool() bool {
	b, err := r.t.Bool(r.next())
	r.keep(err)
	return b
}

func (r *TupleReader) Address() common.Address {
	a, err := r.t.Address(r.next())
	r.keep(err)
	return a
}

func (r *TupleReader) BigInt() *big.Int {
	n, err := r.t.BigInt(r.next())
	r.keep(err)
	if n == nil {
		return new(big.Int)
	}
	return n
}

func (r *TupleReader) Uint64() uint64 {
	n, err := r.t.Uint64(r.next())
	r.keep(err)
	return n
}

func (r *TupleReader) Addresses() []common.Address {
	list, err := r.t.Addresses(r.next())
	r.keep(err)
	return list
}

func (r *TupleReader) keep(err error) {
	if r.err == nil && err != nil {
		r.err = err
	}
}

// Err 第一个读取错误，或者输出个数与读取个数不一致
func (r *TupleReader) Err() error {
	if r.err != nil {
		return r.err
	}
	if r.i != len(r.t) {
		return fmt.Errorf("%w: read %d values, got %d", ErrTupleShape, r.i, len(r.t))
	}
	return nil
}
