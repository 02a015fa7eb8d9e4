package chain

// RegistryABI is the fixed ABI of the deployed identity registry contract.
// The contract itself is an external collaborator; only this interface is
// relied on.
const RegistryABI = `[
  {
    "type": "function",
    "name": "registerIdentity",
    "inputs": [
      { "name": "did", "type": "string", "internalType": "string" },
      { "name": "ipfsHash", "type": "string", "internalType": "string" },
      { "name": "owner", "type": "address", "internalType": "address" }
    ],
    "outputs": [],
    "stateMutability": "nonpayable"
  },
  {
    "type": "function",
    "name": "setStatus",
    "inputs": [
      { "name": "did", "type": "string", "internalType": "string" },
      { "name": "status", "type": "uint8", "internalType": "uint8" }
    ],
    "outputs": [],
    "stateMutability": "nonpayable"
  },
  {
    "type": "function",
    "name": "exists",
    "inputs": [{ "name": "did", "type": "string", "internalType": "string" }],
    "outputs": [{ "name": "", "type": "bool", "internalType": "bool" }],
    "stateMutability": "view"
  },
  {
    "type": "function",
    "name": "getIdentity",
    "inputs": [{ "name": "did", "type": "string", "internalType": "string" }],
    "outputs": [
      { "name": "ipfsHash", "type": "string", "internalType": "string" },
      { "name": "owner", "type": "address", "internalType": "address" },
      { "name": "status", "type": "uint8", "internalType": "uint8" },
      { "name": "createdAt", "type": "uint256", "internalType": "uint256" }
    ],
    "stateMutability": "view"
  }
]`
