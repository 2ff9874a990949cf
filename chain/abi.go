package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Only the functions this service calls are declared.
const achievementNFTABI = `[
  {"type":"function","name":"hasUserMinted","stateMutability":"view",
   "inputs":[{"name":"user","type":"address"},{"name":"achievementType","type":"uint8"}],
   "outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"mintAchievement","stateMutability":"nonpayable",
   "inputs":[{"name":"to","type":"address"},{"name":"achievementType","type":"uint8"},
             {"name":"improvementRating","type":"uint256"},{"name":"tokenURI","type":"string"}],
   "outputs":[]},
  {"type":"event","name":"AchievementMinted","anonymous":false,
   "inputs":[{"name":"tokenId","type":"uint256","indexed":true},
             {"name":"owner","type":"address","indexed":true},
             {"name":"achievementType","type":"uint8","indexed":false}]}
]`

const pointsABI = `[
  {"type":"function","name":"getUserData","stateMutability":"view",
   "inputs":[{"name":"user","type":"address"}],
   "outputs":[{"name":"totalPoints","type":"uint256"},{"name":"journalStreak","type":"uint256"},
              {"name":"meditationStreak","type":"uint256"},{"name":"lastJournalDate","type":"uint256"},
              {"name":"lastMeditationDate","type":"uint256"}]},
  {"type":"function","name":"canMeditateToday","stateMutability":"view",
   "inputs":[{"name":"user","type":"address"}],
   "outputs":[{"name":"","type":"bool"}]}
]`

var (
	nftContractABI    = mustParseABI(achievementNFTABI)
	pointsContractABI = mustParseABI(pointsABI)
)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic("chain: invalid ABI: " + err.Error())
	}
	return parsed
}
