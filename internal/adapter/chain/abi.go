package chain

// reliefABI covers the subset of the relief token contract this service calls.
const reliefABI = `[
  {
    "type": "function",
    "name": "relaySpendTokens",
    "stateMutability": "nonpayable",
    "inputs": [
      {"name": "_user", "type": "address"},
      {"name": "_merchant", "type": "address"},
      {"name": "_amount", "type": "uint256"},
      {"name": "_description", "type": "string"},
      {"name": "_pinHash", "type": "bytes32"},
      {"name": "_nonce", "type": "uint256"}
    ],
    "outputs": []
  },
  {
    "type": "function",
    "name": "getNonce",
    "stateMutability": "view",
    "inputs": [{"name": "_user", "type": "address"}],
    "outputs": [{"name": "", "type": "uint256"}]
  },
  {
    "type": "function",
    "name": "getMerchantProfile",
    "stateMutability": "view",
    "inputs": [{"name": "", "type": "address"}],
    "outputs": [
      {"name": "category", "type": "uint8"},
      {"name": "businessName", "type": "string"},
      {"name": "verified", "type": "bool"},
      {"name": "totalReceived", "type": "uint256"}
    ]
  }
]`

// categoryNames indexes the contract's merchant category enum.
var categoryNames = []string{"None", "Food", "Medicine", "Emergency"}

func categoryName(id uint8) string {
	if int(id) < len(categoryNames) {
		return categoryNames[id]
	}
	return "Unknown"
}
