package signer

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

const (
	DomainName    = "Exchange"
	DomainVersion = "1"
	DomainChainID = 1337

	SourceMainnet = "a"
	SourceTestnet = "b"
)

var (
	// VerifyingContract is the zero address; L1 actions are not bound to a contract.
	VerifyingContract = common.Address{}

	EIP712DomainTypeHash = crypto.Keccak256Hash([]byte("EIP712Domain(string name,string version,uint256 chainId,address verifyingContract)"))
	AgentTypeHash        = crypto.Keccak256Hash([]byte("Agent(string source,bytes32 connectionId)"))
)

// PhantomAgent is the struct actually signed for L1 actions.
type PhantomAgent struct {
	Source       string
	ConnectionID common.Hash
}

func NewPhantomAgent(digest common.Hash, isMainnet bool) PhantomAgent {
	source := SourceTestnet
	if isMainnet {
		source = SourceMainnet
	}
	return PhantomAgent{Source: source, ConnectionID: digest}
}

// domainSeparator packs the fixed domain by hand, all fields 32 bytes.
func domainSeparator() common.Hash {
	data := make([]byte, 32*5)
	copy(data[0:32], EIP712DomainTypeHash.Bytes())
	copy(data[32:64], crypto.Keccak256([]byte(DomainName)))
	copy(data[64:96], crypto.Keccak256([]byte(DomainVersion)))
	copy(data[96:128], math.U256Bytes(big.NewInt(DomainChainID)))
	copy(data[128+12:160], VerifyingContract.Bytes())
	return crypto.Keccak256Hash(data)
}

func hashAgent(agent PhantomAgent) []byte {
	data := make([]byte, 32*3)
	copy(data[0:32], AgentTypeHash.Bytes())
	copy(data[32:64], crypto.Keccak256([]byte(agent.Source)))
	copy(data[64:96], agent.ConnectionID.Bytes())
	return crypto.Keccak256(data)
}

// BuildTypedData renders the phantom agent as a full EIP-712 document.
func BuildTypedData(agent PhantomAgent) apitypes.TypedData {
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"Agent": {
				{Name: "source", Type: "string"},
				{Name: "connectionId", Type: "bytes32"},
			},
		},
		PrimaryType: "Agent",
		Domain: apitypes.TypedDataDomain{
			Name:              DomainName,
			Version:           DomainVersion,
			ChainId:           math.NewHexOrDecimal256(DomainChainID),
			VerifyingContract: VerifyingContract.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"source":       agent.Source,
			"connectionId": hexutil.Encode(agent.ConnectionID.Bytes()),
		},
	}
}

// TypedDataHash hashes the document through apitypes.
func TypedDataHash(agent PhantomAgent) (common.Hash, error) {
	hash, _, err := apitypes.TypedDataAndHash(BuildTypedData(agent))
	if err != nil {
		return common.Hash{}, err
	}
	return common.BytesToHash(hash), nil
}
