package chain

// saleABIJSON is the ticket sale contract surface the engine calls. Only
// the functions the engine uses are listed.
const saleABIJSON = `[
  {"name":"getSale","type":"function","stateMutability":"view",
   "inputs":[{"name":"eventId","type":"uint256"}],
   "outputs":[
     {"name":"stakeAmount","type":"uint256"},
     {"name":"ticketSupply","type":"uint256"},
     {"name":"ticketsMinted","type":"uint256"},
     {"name":"isOpen","type":"bool"},
     {"name":"lotteryExecuted","type":"bool"},
     {"name":"entrantsCount","type":"uint256"},
     {"name":"winnersCount","type":"uint256"}]},
  {"name":"hasEnteredSale","type":"function","stateMutability":"view",
   "inputs":[{"name":"eventId","type":"uint256"},{"name":"wallet","type":"address"}],
   "outputs":[{"name":"","type":"bool"}]},
  {"name":"isSaleWinner","type":"function","stateMutability":"view",
   "inputs":[{"name":"eventId","type":"uint256"},{"name":"wallet","type":"address"}],
   "outputs":[{"name":"","type":"bool"}]},
  {"name":"getMaxTransferPrice","type":"function","stateMutability":"view",
   "inputs":[{"name":"eventId","type":"uint256"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"name":"enterSale","type":"function","stateMutability":"payable",
   "inputs":[{"name":"eventId","type":"uint256"}],"outputs":[]},
  {"name":"claimTicket","type":"function","stateMutability":"nonpayable",
   "inputs":[{"name":"eventId","type":"uint256"}],"outputs":[]},
  {"name":"transferWinnerStatus","type":"function","stateMutability":"nonpayable",
   "inputs":[{"name":"eventId","type":"uint256"},{"name":"to","type":"address"}],"outputs":[]},
  {"name":"withdrawEntry","type":"function","stateMutability":"nonpayable",
   "inputs":[{"name":"eventId","type":"uint256"}],"outputs":[]},
  {"name":"withdrawStake","type":"function","stateMutability":"nonpayable",
   "inputs":[{"name":"eventId","type":"uint256"}],"outputs":[]},
  {"name":"configureEventSale","type":"function","stateMutability":"nonpayable",
   "inputs":[
     {"name":"eventId","type":"uint256"},
     {"name":"stakeAmount","type":"uint256"},
     {"name":"ticketSupply","type":"uint256"},
     {"name":"maxTransferPct","type":"uint256"}],"outputs":[]},
  {"name":"runLottery","type":"function","stateMutability":"nonpayable",
   "inputs":[{"name":"eventId","type":"uint256"}],"outputs":[]}
]`
