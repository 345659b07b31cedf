package presale

import (
	"math/big"
)

var (
	bigOne     = big.NewInt(1)
	bigHundred = big.NewInt(100)
)

// ParseAmount 解析外部输入的金额（非负十进制整数字符串，wei）
func ParseAmount(s string) (*big.Int, error) {
	if s == "" {
		return nil, Errorf(KindInvalidConfiguration, "InvalidAmount: empty")
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, Errorf(KindInvalidConfiguration, "InvalidAmount for value %s", s)
	}
	return v, nil
}

// parseStored 解析数据库中的金额字段；空串视为0，损坏的值视为配置错误
func parseStored(field, s string) (*big.Int, error) {
	if s == "" {
		return big.NewInt(0), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, Errorf(KindInvalidConfiguration, "corrupted stored amount for %s: %s", field, s)
	}
	return v, nil
}

// ceilDiv 向上取整除法：先取下整商与余数，余数非零则加一个最小单位
func ceilDiv(a, b *big.Int) *big.Int {
	q, r := new(big.Int).QuoRem(a, b, new(big.Int))
	if r.Sign() != 0 {
		q.Add(q, bigOne)
	}
	return q
}

// percentOf floor(a * p / 100)
func percentOf(a *big.Int, p int) *big.Int {
	v := new(big.Int).Mul(a, big.NewInt(int64(p)))
	return v.Div(v, bigHundred)
}
