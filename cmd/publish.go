// Copyright 2020 The Cockroach Authors.
//
// Use of this software is governed by the Business Source License
// included in the file licenses/BSL.txt.
//
// As of the Change Date specified in that file, in accordance with
// the Business Source License, use of this software will be governed
// by the Apache License, Version 2.0, included in the file
// licenses/APL.txt.
package cmd

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/net/context"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	sheets "google.golang.org/api/sheets/v4"
)

type publishConfig struct {
	Credentials string
	Token       string
	Spreadsheet string
	Range       string
}

// publishCmd represents the publish command
var publishCmd = &cobra.Command{
	Use:   "publish <file>",
	Short: "Appends a results table to a Google spreadsheet",
	Long:  `Appends the rows of a TSV or CSV results file, without its header, to a spreadsheet range`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := publishConfig{
			Credentials: viper.GetString(configKey(cmd, "credentials")),
			Token:       viper.GetString(configKey(cmd, "token")),
			Spreadsheet: viper.GetString(configKey(cmd, "spreadsheet")),
			Range:       viper.GetString(configKey(cmd, "range")),
		}
		if cfg.Spreadsheet == "" {
			return errors.New("--spreadsheet is required")
		}
		return publish(cmd.Context(), args[0], cfg)
	},
}

func init() {
	publishCmd.Flags().String("credentials", "./credentials.json", "OAuth client secret file")
	publishCmd.Flags().String("token", "token.json", "file caching the OAuth access and refresh tokens")
	publishCmd.Flags().String("spreadsheet", "", "ID of the spreadsheet to append to")
	publishCmd.Flags().String("range", "Results!A:E", "range receiving the rows")
	bindFlags(publishCmd)
	rootCmd.AddCommand(publishCmd)
}

func publish(ctx context.Context, p string, cfg publishConfig) error {
	f, err := os.Open(p)
	if err != nil {
		return err
	}
	defer f.Close()

	rows, err := readTableRows(f, tableDelimiter(p))
	if err != nil {
		return errors.Wrapf(err, "reading %s", p)
	}
	if len(rows) == 0 {
		log.Printf("No rows in %s; nothing to publish", p)
		return nil
	}

	srv, err := getSheetsClient(ctx, cfg)
	if err != nil {
		return err
	}

	vr := sheets.ValueRange{
		MajorDimension: "ROWS",
		Values:         rows,
	}
	if _, err := srv.Spreadsheets.Values.Append(cfg.Spreadsheet, cfg.Range, &vr).
		ValueInputOption("RAW").Context(ctx).Do(); err != nil {
		return errors.Wrapf(err, "appending %s to %s", p, cfg.Range)
	}
	log.Printf("Appended %d rows from %s to %s", len(rows), p, cfg.Range)
	return nil
}

func tableDelimiter(p string) rune {
	if strings.EqualFold(filepath.Ext(p), ".tsv") {
		return '\t'
	}
	return ','
}

// readTableRows reads a delimited table, drops its header row and converts
// the records to the 2D interface slice the Sheets API expects.
func readTableRows(r io.Reader, comma rune) ([][]interface{}, error) {
	cr := csv.NewReader(r)
	cr.Comma = comma
	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	// Remove header row.
	recordsWOHeader := records[1:]
	s := make([][]interface{}, len(recordsWOHeader))
	for i, v := range recordsWOHeader {
		s[i] = make([]interface{}, len(v))
		for j, w := range v {
			s[i][j] = w
		}
	}
	return s, nil
}

func getSheetsClient(ctx context.Context, cfg publishConfig) (*sheets.Service, error) {
	b, err := ioutil.ReadFile(cfg.Credentials)
	if err != nil {
		return nil, errors.Wrap(err, "unable to read client secret file")
	}

	// If modifying these scopes, delete your previously saved token file.
	config, err := google.ConfigFromJSON(b, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, errors.Wrap(err, "unable to parse client secret file to config")
	}
	client, err := getClient(ctx, config, cfg.Token)
	if err != nil {
		return nil, err
	}

	srv, err := sheets.New(client)
	if err != nil {
		return nil, errors.Wrap(err, "unable to retrieve Sheets client")
	}
	return srv, nil
}

// Retrieve a token, saves the token, then returns the generated client.
func getClient(ctx context.Context, config *oauth2.Config, tokFile string) (*http.Client, error) {
	tok, err := tokenFromFile(tokFile)
	if err != nil {
		tok, err = getTokenFromWeb(ctx, config)
		if err != nil {
			return nil, err
		}
		if err := saveToken(tokFile, tok); err != nil {
			return nil, err
		}
	}
	return config.Client(ctx, tok), nil
}

// Request a token from the web, then returns the retrieved token.
func getTokenFromWeb(ctx context.Context, config *oauth2.Config) (*oauth2.Token, error) {
	authURL := config.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	fmt.Printf("Go to the following link in your browser then type the "+
		"authorization code: \n%v\n", authURL)

	var authCode string
	if _, err := fmt.Scan(&authCode); err != nil {
		return nil, errors.Wrap(err, "unable to read authorization code")
	}

	tok, err := config.Exchange(ctx, authCode)
	if err != nil {
		return nil, errors.Wrap(err, "unable to retrieve token from web")
	}
	return tok, nil
}

// Retrieves a token from a local file.
func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}

// Saves a token to a file path.
func saveToken(path string, token *oauth2.Token) error {
	log.Printf("Saving credential file to: %s", path)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return errors.Wrap(err, "unable to cache oauth token")
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(token)
}
