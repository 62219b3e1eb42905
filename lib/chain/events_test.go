package chain

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/require"

	"github.com/corralhq/corral/lib/engine"
)

var (
	ownerAddr    = common.HexToAddress("0x4444444444444444444444444444444444444444")
	deployedAddr = common.HexToAddress("0x5555555555555555555555555555555555555555")
	sharesAddr   = common.HexToAddress("0x6666666666666666666666666666666666666666")
	inviteAddr   = common.HexToAddress("0x7777777777777777777777777777777777777777")
	treasuryAddr = common.HexToAddress("0x8888888888888888888888888888888888888888")
)

func addressTopic(a common.Address) string {
	return common.BytesToHash(common.LeftPadBytes(a.Bytes(), 32)).Hex()
}

func newSpaceLog(owner, space common.Address) engine.Log {
	return engine.Log{
		Address: ownerAddr.Hex(),
		Topics:  []string{NewSpaceTopic.Hex(), addressTopic(owner), addressTopic(space)},
		Data:    "0x",
	}
}

func registerLog(space, shares, invite, treasury common.Address) engine.Log {
	data := make([]byte, 0, 96)
	data = append(data, common.LeftPadBytes(shares.Bytes(), 32)...)
	data = append(data, common.LeftPadBytes(invite.Bytes(), 32)...)
	data = append(data, common.LeftPadBytes(treasury.Bytes(), 32)...)

	return engine.Log{
		Topics: []string{RegisterTopic.Hex(), addressTopic(space)},
		Data:   hexutil.Encode(data),
	}
}

func TestDecodeNewSpace(t *testing.T) {
	logs := []engine.Log{
		// unrelated log first, skipped by signature
		{Topics: []string{RegisterTopic.Hex(), addressTopic(deployedAddr)}, Data: "0x"},
		newSpaceLog(ownerAddr, deployedAddr),
	}

	space, err := DecodeNewSpace(logs)
	require.NoError(t, err)
	require.Equal(t, deployedAddr, space)
}

func TestDecodeNewSpaceFirstMatchWins(t *testing.T) {
	other := common.HexToAddress("0x9999999999999999999999999999999999999999")
	logs := []engine.Log{
		newSpaceLog(ownerAddr, deployedAddr),
		newSpaceLog(ownerAddr, other),
	}

	space, err := DecodeNewSpace(logs)
	require.NoError(t, err)
	require.Equal(t, deployedAddr, space)
}

func TestDecodeNewSpaceNotFound(t *testing.T) {
	logs := []engine.Log{{Topics: []string{RegisterTopic.Hex()}, Data: "0x"}}

	_, err := DecodeNewSpace(logs)
	require.ErrorIs(t, err, ErrEventNotFound)
}

func TestDecodeNewSpaceMalformed(t *testing.T) {
	logs := []engine.Log{{Topics: []string{NewSpaceTopic.Hex(), addressTopic(ownerAddr)}, Data: "0x"}}

	_, err := DecodeNewSpace(logs)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrEventNotFound)
}

func TestDecodeRegister(t *testing.T) {
	logs := []engine.Log{
		newSpaceLog(ownerAddr, deployedAddr),
		registerLog(deployedAddr, sharesAddr, inviteAddr, treasuryAddr),
	}

	res, err := DecodeRegister(logs)
	require.NoError(t, err)
	require.Equal(t, deployedAddr, res.Space)
	require.Equal(t, sharesAddr, res.SharesToken)
	require.Equal(t, inviteAddr, res.InviteToken)
	require.Equal(t, treasuryAddr, res.Treasury)
}

func TestDecodeRegisterNotFound(t *testing.T) {
	logs := []engine.Log{newSpaceLog(ownerAddr, deployedAddr)}

	_, err := DecodeRegister(logs)
	require.ErrorIs(t, err, ErrEventNotFound)
}

func TestDecodeRegisterShortData(t *testing.T) {
	logs := []engine.Log{{
		Topics: []string{RegisterTopic.Hex(), addressTopic(deployedAddr)},
		Data:   hexutil.Encode(common.LeftPadBytes(sharesAddr.Bytes(), 32)),
	}}

	_, err := DecodeRegister(logs)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrEventNotFound)
}
