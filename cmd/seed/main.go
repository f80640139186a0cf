// Seed pushes a demo location, EVSE, connector, tariff and token into a
// running hub so the receiver endpoints have something to serve.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/go-resty/resty/v2"

	"ocpihub/internal/models"
)

func main() {
	base := flag.String("base", "http://localhost:8081", "hub base URL")
	token := flag.String("token", "", "bearer token")
	cc := flag.String("cc", "NL", "owning country code")
	party := flag.String("party", "EXA", "owning party id")
	locationID := flag.String("location", "LOC1", "location id")
	tokenUID := flag.String("token_uid", "TOK1", "token uid")
	flag.Parse()

	c := resty.New().SetBaseURL(*base + "/ocpi/receiver/2.2").SetTimeout(10 * time.Second)
	if *token != "" {
		c.SetAuthToken(*token)
	}

	now := time.Now().UTC()
	name := "Demo Garage"

	put(c, fmt.Sprintf("/locations/%s/%s/%s", *cc, *party, *locationID), models.Location{
		CountryCode: *cc,
		PartyID:     *party,
		ID:          *locationID,
		Publish:     true,
		Name:        &name,
		Address:     "Stationsplein 1",
		City:        "Utrecht",
		Country:     "NLD",
		Coordinates: models.GeoLocation{Latitude: "52.089", Longitude: "5.110"},
		TimeZone:    "Europe/Amsterdam",
		LastUpdated: now,
	})

	put(c, fmt.Sprintf("/locations/%s/%s/%s/EVSE-1", *cc, *party, *locationID), models.EVSE{
		UID:         "EVSE-1",
		Status:      "AVAILABLE",
		LastUpdated: now,
	})

	put(c, fmt.Sprintf("/locations/%s/%s/%s/EVSE-1/1", *cc, *party, *locationID), models.Connector{
		ID:          "1",
		Standard:    "IEC_62196_T2",
		Format:      "SOCKET",
		PowerType:   "AC_3_PHASE",
		MaxVoltage:  230,
		MaxAmperage: 32,
		LastUpdated: now,
	})

	put(c, fmt.Sprintf("/tariffs/%s/%s/TAR1", *cc, *party), models.Tariff{
		CountryCode: *cc,
		PartyID:     *party,
		ID:          "TAR1",
		Currency:    "EUR",
		Elements: []models.TariffElement{{
			PriceComponents: []models.PriceComponent{{Type: "ENERGY", Price: 0.31, StepSize: 1}},
		}},
		LastUpdated: now,
	})

	put(c, fmt.Sprintf("/tokens/%s/%s/%s", *cc, *party, *tokenUID), models.Token{
		CountryCode: *cc,
		PartyID:     *party,
		UID:         *tokenUID,
		Type:        "RFID",
		ContractID:  *cc + "-" + *party + "-C1",
		Issuer:      "Example eMSP",
		Valid:       true,
		Whitelist:   "ALLOWED",
		LastUpdated: now,
	})

	fmt.Println("Seeded demo data for", *cc+"*"+*party)
}

func put(c *resty.Client, path string, body any) {
	resp, err := c.R().SetBody(body).Put(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "PUT", path, "failed:", err)
		os.Exit(1)
	}
	if resp.IsError() {
		fmt.Fprintln(os.Stderr, "PUT", path, "returned", resp.StatusCode(), resp.String())
		os.Exit(1)
	}
	fmt.Println("PUT", path, resp.StatusCode())
}
